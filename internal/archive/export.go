// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// ExportEntry holds an archived record for export.
type ExportEntry struct {
	RunID          string            `json:"run_id" yaml:"run_id"`
	Index          int               `json:"index" yaml:"index"`
	CaseName       string            `json:"case_name" yaml:"case_name"`
	Fields         map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
	JudgmentURL    *string           `json:"judgment_url" yaml:"judgment_url"`
	Method         string            `json:"conversion_method" yaml:"conversion_method"`
	Pages          int               `json:"pages,omitempty" yaml:"pages,omitempty"`
	ParseError     string            `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
	RetrievalError string            `json:"retrieval_error,omitempty" yaml:"retrieval_error,omitempty"`
	Text           string            `json:"text,omitempty" yaml:"text,omitempty"`
}

const exportLimit = 1000000

// ExportYAML writes matching records to w as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes matching records to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]ExportEntry, error) {
	opts.MaxResults = exportLimit
	hits, err := s.Search(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(hits))
	for i, h := range hits {
		r := h.Record
		entries[i] = ExportEntry{
			RunID:          h.RunID,
			Index:          r.Index,
			CaseName:       r.CaseName,
			JudgmentURL:    r.DocumentRef,
			Method:         string(r.Method),
			Pages:          r.Pages,
			ParseError:     r.ParseError,
			RetrievalError: r.RetrievalError,
			Text:           r.Text,
		}
		if len(r.Fields) > 0 {
			entries[i].Fields = r.Fields.Map()
		}
	}
	return entries, nil
}
