// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink collects finished records and hands them back in the row
// order of the portal's results table, whatever order they completed in.
package sink

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// ErrFinalized is returned by Append once Finalize has been called.
var ErrFinalized = errors.New("sink finalized")

// Sink accumulates records keyed by row index. It is safe for concurrent use.
type Sink struct {
	mu        sync.Mutex
	records   map[int]types.ResultRecord
	finalized bool
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{records: make(map[int]types.ResultRecord)}
}

// Append stores a copy of rec under its Index. Appending the same index
// twice keeps the later record.
func (s *Sink) Append(rec types.ResultRecord) error {
	if rec.Index < 0 {
		return fmt.Errorf("appending record: negative index %d", rec.Index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}
	s.records[rec.Index] = rec.Clone()
	return nil
}

// Len returns the number of records held.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Finalize closes the sink and returns its records ordered by Index.
// Further calls return the same ordering.
func (s *Sink) Finalize() []types.ResultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true

	out := make([]types.ResultRecord, 0, len(s.records))
	for _, idx := range slices.Sorted(maps.Keys(s.records)) {
		out = append(out, s.records[idx].Clone())
	}
	return out
}
