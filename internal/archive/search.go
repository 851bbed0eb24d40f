// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// QueryOptions holds parameters for archive queries.
type QueryOptions struct {
	// Query is the full-text search string over case names and text.
	Query string

	// RunID restricts results to one run.
	RunID string

	// Method filters by conversion method.
	Method types.ConversionMethod

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.RunID == "" && q.Method == ""
}

// Hit is an archived record with the run it belongs to.
type Hit struct {
	RunID  string             `json:"run_id" yaml:"run_id"`
	Record types.ResultRecord `json:"record" yaml:"record"`
}

// Search queries the archive with optional full-text search and filters.
// Full-text results are ranked by relevance; filter-only results are
// ordered by run and row index.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]Hit, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != "" && s.fts
	)

	const cols = `r.run_id, r.row_index, r.case_name, r.fields, r.judgment_url, r.method,
		r.text, r.pages, r.parse_error, r.retrieval_error`

	switch {
	case useFTS:
		qb.WriteString(`SELECT ` + cols + `
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			WHERE records_fts MATCH ?`)
		args = append(args, opts.Query)
	case opts.Query != "":
		qb.WriteString(`SELECT ` + cols + ` FROM records r
			WHERE (instr(lower(r.text), lower(?)) > 0 OR instr(lower(r.case_name), lower(?)) > 0)`)
		args = append(args, opts.Query, opts.Query)
	default:
		qb.WriteString(`SELECT ` + cols + ` FROM records r WHERE 1=1`)
	}

	if opts.RunID != "" {
		qb.WriteString(` AND r.run_id = ?`)
		args = append(args, opts.RunID)
	}
	if opts.Method != "" {
		qb.WriteString(` AND r.method = ?`)
		args = append(args, string(opts.Method))
	}

	if useFTS {
		qb.WriteString(` ORDER BY records_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.run_id, r.row_index`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h          Hit
			fieldsJSON sql.NullString
			url        sql.NullString
			method     sql.NullString
		)
		r := &h.Record
		if err := rows.Scan(&h.RunID, &r.Index, &r.CaseName, &fieldsJSON, &url, &method,
			&r.Text, &r.Pages, &r.ParseError, &r.RetrievalError,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			if err := json.Unmarshal([]byte(fieldsJSON.String), &r.Fields); err != nil {
				return nil, fmt.Errorf("decoding fields of run %s row %d: %w", h.RunID, r.Index, err)
			}
		}
		if url.Valid {
			ref := url.String
			r.DocumentRef = &ref
		}
		r.Method = types.ConversionMethod(method.String)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
