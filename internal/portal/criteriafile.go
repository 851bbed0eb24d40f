// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package portal

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// CriteriaFile is the on-disk form of a search. A saved file can be rerun
// later or shared between machines.
type CriteriaFile struct {
	Courts          []string `yaml:"courts"`
	From            string   `yaml:"from"`
	To              string   `yaml:"to"`
	Benches         []string `yaml:"benches,omitempty"`
	CaseTypes       []string `yaml:"case_types,omitempty"`
	CaseTypePattern string   `yaml:"case_type_pattern,omitempty"`
	DisposalNatures []string `yaml:"disposal_natures,omitempty"`
	DisposalPattern string   `yaml:"disposal_pattern,omitempty"`
}

// ReadCriteriaFile loads and validates criteria from a YAML file.
func ReadCriteriaFile(path string) (types.SearchCriteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.SearchCriteria{}, fmt.Errorf("reading criteria file: %w", err)
	}
	var cf CriteriaFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return types.SearchCriteria{}, fmt.Errorf("parsing criteria file: %w", err)
	}
	return cf.ToCriteria()
}

// WriteCriteriaFile saves criteria to a YAML file.
func WriteCriteriaFile(path string, c types.SearchCriteria) error {
	cf := CriteriaFile{
		Courts:          c.Courts,
		Benches:         c.Benches,
		CaseTypes:       c.CaseTypes,
		CaseTypePattern: c.CaseTypePattern,
		DisposalNatures: c.DisposalNatures,
		DisposalPattern: c.DisposalPattern,
	}
	if !c.From.IsZero() {
		cf.From = c.From.Format(types.DateLayout)
	}
	if !c.To.IsZero() {
		cf.To = c.To.Format(types.DateLayout)
	}
	data, err := yaml.Marshal(&cf)
	if err != nil {
		return fmt.Errorf("marshaling criteria file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ToCriteria converts the stored fields into validated criteria.
func (cf CriteriaFile) ToCriteria() (types.SearchCriteria, error) {
	from, err := parseDate("from", cf.From)
	if err != nil {
		return types.SearchCriteria{}, err
	}
	to, err := parseDate("to", cf.To)
	if err != nil {
		return types.SearchCriteria{}, err
	}
	c := types.SearchCriteria{
		Courts:          cf.Courts,
		From:            from,
		To:              to,
		Benches:         cf.Benches,
		CaseTypes:       cf.CaseTypes,
		CaseTypePattern: cf.CaseTypePattern,
		DisposalNatures: cf.DisposalNatures,
		DisposalPattern: cf.DisposalPattern,
	}
	if err := c.Validate(); err != nil {
		return types.SearchCriteria{}, err
	}
	return c, nil
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: %s date is required", types.ErrInvalidCriteria, field)
	}
	t, err := time.Parse(types.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s date %q: %v", types.ErrInvalidCriteria, field, v, err)
	}
	return t, nil
}
