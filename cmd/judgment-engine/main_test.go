// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

func parseCriteria(t *testing.T, args ...string) (types.SearchCriteria, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	addCriteriaFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return criteriaFromFlags(cmd)
}

func TestCriteriaFromFlags(t *testing.T) {
	c, err := parseCriteria(t,
		"--court", "Bombay High Court", "--court", "High Court of Delhi",
		"--from", "2020-01-01", "--to", "2020-12-31",
		"--bench", "Nagpur", "--case-type-pattern", "^CRL", "--disposal", "Allowed")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bombay High Court", "High Court of Delhi"}, c.Courts)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), c.From)
	assert.Equal(t, time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), c.To)
	assert.Equal(t, []string{"Nagpur"}, c.Benches)
	assert.Equal(t, "^CRL", c.CaseTypePattern)
	assert.Equal(t, []string{"Allowed"}, c.DisposalNatures)
}

func TestCriteriaFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no court", []string{"--from", "2020-01-01", "--to", "2020-12-31"}},
		{"reversed range", []string{"--court", "Bombay High Court", "--from", "2021-01-01", "--to", "2020-12-31"}},
		{"bad date", []string{"--court", "Bombay High Court", "--from", "01/01/2020", "--to", "2020-12-31"}},
		{"bad pattern", []string{"--court", "Bombay High Court", "--from", "2020-01-01", "--to", "2020-12-31", "--disposal-pattern", "("}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCriteria(t, tt.args...)
			assert.ErrorIs(t, err, types.ErrInvalidCriteria)
		})
	}
}

func TestCriteriaFromFlags_FileWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`courts: ["Bombay High Court"]
from: "2020-01-01"
to: "2020-06-30"
benches: [Aurangabad]
`), 0o644))

	c, err := parseCriteria(t, "--criteria", path, "--to", "2020-12-31")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bombay High Court"}, c.Courts)
	assert.Equal(t, []string{"Aurangabad"}, c.Benches)
	assert.Equal(t, 2020, c.To.Year())
	assert.Equal(t, time.December, c.To.Month())
}

func TestTextName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"judgments/crl-a-12.pdf", "crl-a-12.txt"},
		{"https://portal.test/pdfsearch/display_pdf.php?filename=x", "display_pdf.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, textName(tt.in), tt.in)
	}
}

func TestPortalBase(t *testing.T) {
	assert.Equal(t, "https://judgments.ecourts.gov.in/pdfsearch/", portalBase(types.DefaultPortalURL))
	assert.Equal(t, "https://x.test/", portalBase("https://x.test/"))
}
