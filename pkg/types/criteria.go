// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// DateLayout is the on-disk and command-line date format for criteria.
const DateLayout = "2006-01-02"

// SearchCriteria holds the filters applied to the portal's Advanced Search
// form. Dates are inclusive. An empty Benches list selects every bench of
// the chosen courts.
type SearchCriteria struct {
	// Courts lists the high court names to search. Must be non-empty.
	Courts []string `json:"courts" yaml:"courts"`

	// From and To bound the judgment date range (inclusive).
	From time.Time `json:"from" yaml:"from"`
	To   time.Time `json:"to" yaml:"to"`

	// Benches restricts the search to named benches. Empty means all.
	Benches []string `json:"benches,omitempty" yaml:"benches,omitempty"`

	// CaseTypes and CaseTypePattern select case types with union semantics.
	CaseTypes       []string `json:"case_types,omitempty" yaml:"case_types,omitempty"`
	CaseTypePattern string   `json:"case_type_pattern,omitempty" yaml:"case_type_pattern,omitempty"`

	// DisposalNatures and DisposalPattern select disposal natures with
	// union semantics.
	DisposalNatures []string `json:"disposal_natures,omitempty" yaml:"disposal_natures,omitempty"`
	DisposalPattern string   `json:"disposal_pattern,omitempty" yaml:"disposal_pattern,omitempty"`
}

// NewSearchCriteria builds criteria for the given courts and date range and
// validates them. Optional filters can be set on the returned value; call
// Validate again after changing them.
func NewSearchCriteria(courts []string, from, to time.Time) (SearchCriteria, error) {
	c := SearchCriteria{Courts: courts, From: from, To: to}
	if err := c.Validate(); err != nil {
		return SearchCriteria{}, err
	}
	return c, nil
}

// Validate checks the criteria invariants. Every failure wraps
// ErrInvalidCriteria.
func (c SearchCriteria) Validate() error {
	courts := 0
	for _, name := range c.Courts {
		if strings.TrimSpace(name) != "" {
			courts++
		}
	}
	if courts == 0 {
		return fmt.Errorf("%w: at least one court is required", ErrInvalidCriteria)
	}
	if c.From.IsZero() || c.To.IsZero() {
		return fmt.Errorf("%w: date range start and end are required", ErrInvalidCriteria)
	}
	if c.From.After(c.To) {
		return fmt.Errorf("%w: date range start %s is after end %s",
			ErrInvalidCriteria, c.From.Format(DateLayout), c.To.Format(DateLayout))
	}
	if _, err := compilePattern(c.CaseTypePattern); err != nil {
		return fmt.Errorf("%w: case type pattern: %v", ErrInvalidCriteria, err)
	}
	if _, err := compilePattern(c.DisposalPattern); err != nil {
		return fmt.Errorf("%w: disposal nature pattern: %v", ErrInvalidCriteria, err)
	}
	return nil
}

// CaseTypeMatcher returns the union matcher for case types.
func (c SearchCriteria) CaseTypeMatcher() (Matcher, error) {
	return NewMatcher(c.CaseTypes, c.CaseTypePattern)
}

// DisposalMatcher returns the union matcher for disposal natures.
func (c SearchCriteria) DisposalMatcher() (Matcher, error) {
	return NewMatcher(c.DisposalNatures, c.DisposalPattern)
}

// BenchMatcher returns a matcher over bench names. An empty bench list
// matches every bench.
func (c SearchCriteria) BenchMatcher() Matcher {
	m, _ := NewMatcher(c.Benches, "")
	return m
}

// Matcher decides whether a form option is selected. An option matches when
// it is in the allow-list or matches the pattern. With neither set, every
// option matches.
type Matcher struct {
	allow   []string
	pattern *regexp.Regexp
}

// NewMatcher compiles a union matcher from an allow-list and a pattern.
func NewMatcher(allow []string, pattern string) (Matcher, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return Matcher{}, err
	}
	var cleaned []string
	for _, a := range allow {
		if a = strings.TrimSpace(a); a != "" {
			cleaned = append(cleaned, a)
		}
	}
	return Matcher{allow: cleaned, pattern: re}, nil
}

// All reports whether the matcher selects every option.
func (m Matcher) All() bool {
	return len(m.allow) == 0 && m.pattern == nil
}

// Match reports whether option is selected.
func (m Matcher) Match(option string) bool {
	if m.All() {
		return true
	}
	option = strings.TrimSpace(option)
	if slices.ContainsFunc(m.allow, func(a string) bool { return strings.EqualFold(a, option) }) {
		return true
	}
	return m.pattern != nil && m.pattern.MatchString(option)
}

// Filter returns the options selected by the matcher, preserving order.
func (m Matcher) Filter(options []string) []string {
	var out []string
	for _, o := range options {
		if m.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

func compilePattern(p string) (*regexp.Regexp, error) {
	if p == "" {
		return nil, nil
	}
	return regexp.Compile(p)
}
