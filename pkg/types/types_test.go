// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewSearchCriteria(t *testing.T) {
	tests := []struct {
		name    string
		courts  []string
		from    time.Time
		to      time.Time
		wantErr bool
	}{
		{"valid range", []string{"Bombay"}, day(2019, 1, 1), day(2020, 1, 1), false},
		{"single day", []string{"Bombay"}, day(2019, 1, 1), day(2019, 1, 1), false},
		{"start after end", []string{"Bombay"}, day(2020, 1, 2), day(2020, 1, 1), true},
		{"no courts", nil, day(2019, 1, 1), day(2020, 1, 1), true},
		{"blank court", []string{"  "}, day(2019, 1, 1), day(2020, 1, 1), true},
		{"missing end", []string{"Bombay"}, day(2019, 1, 1), time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSearchCriteria(tt.courts, tt.from, tt.to)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCriteria)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSearchCriteria_ValidatePatterns(t *testing.T) {
	c, err := NewSearchCriteria([]string{"Bombay"}, day(2019, 1, 1), day(2020, 1, 1))
	require.NoError(t, err)

	c.CaseTypePattern = "Crl.("
	assert.ErrorIs(t, c.Validate(), ErrInvalidCriteria)

	c.CaseTypePattern = "^Crl\\."
	c.DisposalPattern = "[unclosed"
	assert.ErrorIs(t, c.Validate(), ErrInvalidCriteria)
}

func TestMatcher_UnionSemantics(t *testing.T) {
	options := []string{"CRL.A(Criminal Appeal)", "WP(Writ Petition)", "CRL.REV.P", "FA(First Appeal)"}

	tests := []struct {
		name    string
		allow   []string
		pattern string
		want    []string
	}{
		{"neither selects all", nil, "", options},
		{"allow-list only", []string{"wp(writ petition)"}, "", []string{"WP(Writ Petition)"}},
		{"pattern only", nil, `^CRL\.`, []string{"CRL.A(Criminal Appeal)", "CRL.REV.P"}},
		{
			"union of both",
			[]string{"FA(First Appeal)"},
			`^CRL\.A`,
			[]string{"CRL.A(Criminal Appeal)", "FA(First Appeal)"},
		},
		{"nothing matches", []string{"XYZ"}, `^ZZZ`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatcher(tt.allow, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Filter(options))
		})
	}
}

func TestBenchMatcher_DefaultAll(t *testing.T) {
	c := SearchCriteria{}
	assert.True(t, c.BenchMatcher().All())
	c.Benches = []string{"Nagpur"}
	m := c.BenchMatcher()
	assert.False(t, m.All())
	assert.True(t, m.Match("nagpur"))
	assert.False(t, m.Match("Aurangabad"))
}

func TestFields_LastWinsKeepsPosition(t *testing.T) {
	var f Fields
	f.Set("Case No", "1")
	f.Set("Judge", "A")
	f.Set("Case No", "2")

	assert.Equal(t, []string{"Case No", "Judge"}, f.Keys())
	v, ok := f.Get("Case No")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestResultRecord_Clone(t *testing.T) {
	ref := "https://example.com/a.pdf"
	r := ResultRecord{Index: 3, Fields: Fields{{Key: "k", Value: "v"}}, DocumentRef: &ref}
	c := r.Clone()
	c.Fields.Set("k", "changed")
	*c.DocumentRef = "other"

	assert.Equal(t, "v", r.Fields[0].Value)
	assert.Equal(t, "https://example.com/a.pdf", r.Ref())
}

func TestStageError_Unwrap(t *testing.T) {
	err := &StageError{State: StateVerificationPending, Err: ErrVerificationExhausted}
	assert.True(t, errors.Is(err, ErrVerificationExhausted))
	assert.Contains(t, err.Error(), "verification-pending")
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "home", StateHome.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	assert.Equal(t, DefaultPortalURL, c.Portal.URL)
	assert.Equal(t, 5, c.Portal.MaxRetries)
	assert.Equal(t, 4, c.Retrieval.Workers)
	assert.Equal(t, 1, c.Retrieval.DownloadAttempts)
	assert.Equal(t, "eng", c.OCR.Language)
	assert.True(t, c.Browser.Headless)
}

func TestRetrievedDocument_FallbackAndWarnings(t *testing.T) {
	doc := RetrievedDocument{Pages: []PageText{
		{Number: 1, Text: "dense"},
		{Number: 2, Fallback: true, Warning: "optical recognition failed: bad page"},
		{Number: 3, Fallback: true, Optical: true, Text: "scanned"},
	}}
	assert.True(t, doc.Optical())
	assert.Equal(t, "page 2: optical recognition failed: bad page", doc.Warnings())

	clean := RetrievedDocument{Pages: []PageText{{Number: 1, Text: "dense"}}}
	assert.False(t, clean.Optical())
	assert.Empty(t, clean.Warnings())
}
