// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/judgment-engine/internal/archive"
	"github.com/pdiddy/judgment-engine/internal/browser"
	"github.com/pdiddy/judgment-engine/internal/portal"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// fakeSearcher reaches the results page unless err is set.
type fakeSearcher struct {
	err    error
	called bool
}

func (f *fakeSearcher) Search(ctx context.Context, _ types.SearchCriteria, onResults portal.ResultsFunc) (portal.Outcome, error) {
	f.called = true
	if f.err != nil {
		return portal.Outcome{State: types.StateTerminated}, f.err
	}
	if err := onResults(ctx, nil); err != nil {
		return portal.Outcome{State: types.StateTerminated}, &types.StageError{State: types.StateResultsListed, Err: err}
	}
	return portal.Outcome{State: types.StateTerminated}, nil
}

// fakeExtractor yields fixed records.
type fakeExtractor struct {
	records []types.ResultRecord
	err     error
}

func (f fakeExtractor) Extract(context.Context, browser.Driver) (iter.Seq[types.ResultRecord], error) {
	if f.err != nil {
		return nil, f.err
	}
	return slices.Values(f.records), nil
}

type fakeDoc struct {
	text     string
	pages    int
	method   types.ConversionMethod
	failures int   // leading download failures
	err      error // permanent error after failures
	warning  string
}

// fakeRetriever serves scripted documents. A ref listed in after waits for
// the named ref to finish first.
type fakeRetriever struct {
	docs  map[string]*fakeDoc
	after map[string]string

	mu       sync.Mutex
	calls    map[string]int
	order    []string
	finished map[string]chan struct{}
}

func newRetriever(docs map[string]*fakeDoc) *fakeRetriever {
	f := &fakeRetriever{docs: docs, calls: map[string]int{}, finished: map[string]chan struct{}{}}
	for ref := range docs {
		f.finished[ref] = make(chan struct{})
	}
	return f
}

func (f *fakeRetriever) Retrieve(ctx context.Context, ref string) (types.RetrievedDocument, types.ConversionMethod, error) {
	if prev, ok := f.after[ref]; ok {
		select {
		case <-f.finished[prev]:
		case <-ctx.Done():
			return types.RetrievedDocument{}, types.MethodFailed, ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls[ref]++
	n := f.calls[ref]
	f.mu.Unlock()

	d := f.docs[ref]
	if n <= d.failures {
		return types.RetrievedDocument{}, types.MethodFailed, fmt.Errorf("%w: HTTP 503", types.ErrDownloadFailed)
	}
	if d.err != nil {
		f.finish(ref)
		return types.RetrievedDocument{}, types.MethodFailed, d.err
	}
	doc := types.RetrievedDocument{Text: d.text, Pages: make([]types.PageText, d.pages)}
	for i := range doc.Pages {
		doc.Pages[i].Number = i + 1
	}
	if d.warning != "" && d.pages > 0 {
		doc.Pages[d.pages-1].Fallback = true
		doc.Pages[d.pages-1].Warning = d.warning
	}
	f.finish(ref)
	return doc, d.method, nil
}

func (f *fakeRetriever) finish(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, ref)
	close(f.finished[ref])
}

type fakeWriter struct{ records []types.ResultRecord }

func (f *fakeWriter) Write(records []types.ResultRecord) ([]string, error) {
	f.records = records
	return []string{"out/metadata.csv"}, nil
}

type fakeArchive struct {
	run     archive.Run
	records []types.ResultRecord
}

func (f *fakeArchive) SaveRun(_ context.Context, run archive.Run, records []types.ResultRecord) error {
	f.run, f.records = run, records
	return nil
}

func ref(s string) *string { return &s }

func mustDate(s string) time.Time {
	d, err := time.Parse(types.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func criteria(t *testing.T) types.SearchCriteria {
	t.Helper()
	c, err := types.NewSearchCriteria([]string{"Bombay High Court"}, mustDate("2020-01-01"), mustDate("2020-12-31"))
	require.NoError(t, err)
	return c
}

func TestRun_PreservesRowOrder(t *testing.T) {
	ret := newRetriever(map[string]*fakeDoc{
		"a": {text: "A", pages: 1, method: types.MethodDirect},
		"b": {text: "B", pages: 2, method: types.MethodOptical},
		"c": {text: "C", pages: 3, method: types.MethodDirect},
	})
	// Completion order: row 2, row 0, row 1.
	ret.after = map[string]string{"a": "c", "b": "a"}

	w := &fakeWriter{}
	p := &Pipeline{
		Searcher: &fakeSearcher{},
		Extractor: fakeExtractor{records: []types.ResultRecord{
			{Index: 0, CaseName: "A v. State", DocumentRef: ref("a")},
			{Index: 1, CaseName: "B v. State", DocumentRef: ref("b")},
			{Index: 2, CaseName: "C v. State", DocumentRef: ref("c")},
		}},
		Retriever: ret,
		Writer:    w,
		Config:    types.RetrievalConfig{Workers: 3, DownloadAttempts: 1},
	}

	res, err := p.Run(context.Background(), criteria(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ret.order)

	require.Len(t, res.Records, 3)
	for i, r := range res.Records {
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, "B", res.Records[1].Text)
	assert.Equal(t, types.MethodOptical, res.Records[1].Method)
	assert.Equal(t, 2, res.Records[1].Pages)
	assert.Equal(t, res.Records, w.records)
	assert.Equal(t, []string{"out/metadata.csv"}, res.Files)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_RecordFailuresAreIsolated(t *testing.T) {
	ret := newRetriever(map[string]*fakeDoc{
		"flaky":   {text: "ok", pages: 1, method: types.MethodDirect, failures: 1},
		"down":    {failures: 10},
		"corrupt": {err: fmt.Errorf("%w: no text recovered", types.ErrConversionFailed)},
	})
	arc := &fakeArchive{}
	var out bytes.Buffer
	p := &Pipeline{
		Searcher: &fakeSearcher{},
		Extractor: fakeExtractor{records: []types.ResultRecord{
			{Index: 0, CaseName: "Flaky", DocumentRef: ref("flaky")},
			{Index: 1, CaseName: "Broken", ParseError: types.ErrRowParse.Error()},
			{Index: 2, CaseName: "Down", DocumentRef: ref("down")},
			{Index: 3, CaseName: "Corrupt", DocumentRef: ref("corrupt")},
		}},
		Retriever: ret,
		Archive:   arc,
		Config:    types.RetrievalConfig{Workers: 2, DownloadAttempts: 3},
		Out:       &out,
	}

	res, err := p.Run(context.Background(), criteria(t))
	require.NoError(t, err)
	require.Len(t, res.Records, 4)

	assert.Equal(t, types.MethodDirect, res.Records[0].Method)
	assert.Equal(t, 2, ret.calls["flaky"])

	assert.Equal(t, types.MethodNone, res.Records[1].Method)
	assert.Nil(t, res.Records[1].DocumentRef)

	assert.Equal(t, types.MethodFailed, res.Records[2].Method)
	assert.Contains(t, res.Records[2].RetrievalError, types.ErrDownloadFailed.Error())
	assert.Equal(t, 3, ret.calls["down"])

	assert.Equal(t, types.MethodFailed, res.Records[3].Method)
	assert.Contains(t, res.Records[3].RetrievalError, types.ErrConversionFailed.Error())
	assert.Equal(t, 1, ret.calls["corrupt"], "conversion failures are not retried")

	assert.Equal(t, 4, res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Direct)
	assert.Equal(t, 2, res.Summary.Failed)
	assert.Equal(t, 1, res.Summary.Unreferenced)
	assert.Equal(t, 1, res.Summary.ParseErrors)

	assert.Equal(t, res.RunID, arc.run.ID)
	assert.Equal(t, res.Summary, arc.run.Summary)
	assert.Len(t, arc.records, 4)

	assert.Contains(t, out.String(), "unreferenced: 1 Broken")
	assert.Contains(t, out.String(), "Batch summary: total: 4, direct: 1, optical: 0, failed: 2, unreferenced: 1, parse errors: 1")
}

func TestRun_PageWarningsReachRecord(t *testing.T) {
	ret := newRetriever(map[string]*fakeDoc{
		"partial": {text: "page one\f", pages: 2, method: types.MethodOptical, warning: "optical recognition failed: pdftoppm: bad page"},
	})
	p := &Pipeline{
		Searcher: &fakeSearcher{},
		Extractor: fakeExtractor{records: []types.ResultRecord{
			{Index: 0, CaseName: "Partial", DocumentRef: ref("partial")},
		}},
		Retriever: ret,
		Config:    types.RetrievalConfig{Workers: 1, DownloadAttempts: 1},
	}

	res, err := p.Run(context.Background(), criteria(t))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, types.MethodOptical, res.Records[0].Method)
	assert.Equal(t, "page 2: optical recognition failed: pdftoppm: bad page", res.Records[0].RetrievalError)
	assert.Equal(t, "page one\f", res.Records[0].Text)
}

func TestRun_NavigationFailureWritesNothing(t *testing.T) {
	w, arc := &fakeWriter{}, &fakeArchive{}
	p := &Pipeline{
		Searcher:  &fakeSearcher{err: &types.StageError{State: types.StateVerificationPending, Err: types.ErrVerificationExhausted}},
		Extractor: fakeExtractor{},
		Retriever: newRetriever(nil),
		Writer:    w,
		Archive:   arc,
	}
	res, err := p.Run(context.Background(), criteria(t))
	assert.ErrorIs(t, err, types.ErrVerificationExhausted)
	assert.Nil(t, res.Records)
	assert.Nil(t, w.records)
	assert.Empty(t, arc.run.ID)
}

func TestRun_ExtractionFailureIsFatal(t *testing.T) {
	w := &fakeWriter{}
	p := &Pipeline{
		Searcher:  &fakeSearcher{},
		Extractor: fakeExtractor{err: errors.New("results table not found")},
		Retriever: newRetriever(nil),
		Writer:    w,
	}
	_, err := p.Run(context.Background(), criteria(t))
	var se *types.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.StateResultsListed, se.State)
	assert.Nil(t, w.records)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &fakeWriter{}
	p := &Pipeline{
		Searcher:  &fakeSearcher{},
		Extractor: fakeExtractor{records: []types.ResultRecord{{Index: 0, DocumentRef: ref("a")}}},
		Retriever: newRetriever(map[string]*fakeDoc{"a": {text: "A", method: types.MethodDirect}}),
		Writer:    w,
	}
	_, err := p.Run(ctx, criteria(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, w.records)
}
