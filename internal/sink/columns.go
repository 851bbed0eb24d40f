// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"fmt"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Fixed column names around the metadata fields.
const (
	ColCaseName       = "case_name"
	ColJudgmentURL    = "judgment_url"
	ColMethod         = "conversion_method"
	ColText           = "text"
	ColParseError     = "parse_error"
	ColRetrievalError = "retrieval_error"
)

// Columns returns the tabular header for records: case_name, then every
// metadata key in first-seen order, then the document and outcome columns.
// A metadata key that collides with a fixed column is emitted only once.
func Columns(records []types.ResultRecord) []string {
	fixed := map[string]bool{
		ColCaseName: true, ColJudgmentURL: true, ColMethod: true,
		ColText: true, ColParseError: true, ColRetrievalError: true,
	}
	cols := []string{ColCaseName}
	seen := make(map[string]bool)
	for _, r := range records {
		for _, k := range r.Fields.Keys() {
			if seen[k] || fixed[k] {
				continue
			}
			seen[k] = true
			cols = append(cols, k)
		}
	}
	return append(cols, ColJudgmentURL, ColMethod, ColText, ColParseError, ColRetrievalError)
}

// Row returns rec's values in the order of cols. Missing fields are empty.
func Row(rec types.ResultRecord, cols []string) []string {
	row := make([]string, len(cols))
	for i, c := range cols {
		switch c {
		case ColCaseName:
			row[i] = rec.CaseName
		case ColJudgmentURL:
			row[i] = rec.Ref()
		case ColMethod:
			row[i] = string(rec.Method)
		case ColText:
			row[i] = rec.Text
		case ColParseError:
			row[i] = rec.ParseError
		case ColRetrievalError:
			row[i] = rec.RetrievalError
		default:
			row[i], _ = rec.Fields.Get(c)
		}
	}
	return row
}

// Summary counts records by outcome.
type Summary struct {
	Total        int
	Direct       int
	Optical      int
	Failed       int
	Unreferenced int
	ParseErrors  int
}

// Summarize tallies records.
func Summarize(records []types.ResultRecord) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		switch r.Method {
		case types.MethodDirect:
			s.Direct++
		case types.MethodOptical:
			s.Optical++
		case types.MethodFailed:
			s.Failed++
		}
		if r.DocumentRef == nil {
			s.Unreferenced++
		}
		if r.ParseError != "" {
			s.ParseErrors++
		}
	}
	return s
}

// String renders the summary as a single batch line.
func (s Summary) String() string {
	return fmt.Sprintf("total: %d, direct: %d, optical: %d, failed: %d, unreferenced: %d, parse errors: %d",
		s.Total, s.Direct, s.Optical, s.Failed, s.Unreferenced, s.ParseErrors)
}
