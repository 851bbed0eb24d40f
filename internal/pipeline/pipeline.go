// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs a complete judgment search: it drives the portal
// session, extracts result rows, retrieves documents on a bounded worker
// pool, and writes the ordered records to the configured outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/judgment-engine/internal/archive"
	"github.com/pdiddy/judgment-engine/internal/browser"
	"github.com/pdiddy/judgment-engine/internal/portal"
	"github.com/pdiddy/judgment-engine/internal/sink"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Searcher drives a portal session to its results page.
type Searcher interface {
	Search(ctx context.Context, criteria types.SearchCriteria, onResults portal.ResultsFunc) (portal.Outcome, error)
}

// Extractor turns the results page into an ordered record sequence.
type Extractor interface {
	Extract(ctx context.Context, d browser.Driver) (iter.Seq[types.ResultRecord], error)
}

// Retriever fetches and converts one judgment document.
type Retriever interface {
	Retrieve(ctx context.Context, ref string) (types.RetrievedDocument, types.ConversionMethod, error)
}

// Writer persists finalized records.
type Writer interface {
	Write(records []types.ResultRecord) ([]string, error)
}

// Archiver stores a completed run.
type Archiver interface {
	SaveRun(ctx context.Context, run archive.Run, records []types.ResultRecord) error
}

// Pipeline wires the stages of a run. Writer and Archive are optional.
type Pipeline struct {
	Searcher  Searcher
	Extractor Extractor
	Retriever Retriever
	Writer    Writer
	Archive   Archiver
	Config    types.RetrievalConfig
	Logger    *slog.Logger

	// Out receives per-record progress lines and the batch summary.
	Out io.Writer
}

// Result is the outcome of a completed run.
type Result struct {
	RunID   string
	Outcome portal.Outcome
	Records []types.ResultRecord
	Summary sink.Summary
	Files   []string
}

// Run executes one search. Navigation failures are returned as errors and
// nothing is written. Download and conversion failures are recorded on the
// affected records and the run continues.
func (p *Pipeline) Run(ctx context.Context, criteria types.SearchCriteria) (Result, error) {
	res := Result{RunID: archive.NewRunID()}
	started := time.Now()
	logger := p.logger().With("run", res.RunID)
	out := &lockedWriter{w: p.Out}
	if p.Out == nil {
		out.w = io.Discard
	}

	snk := sink.New()
	onResults := func(ctx context.Context, d browser.Driver) error {
		seq, err := p.Extractor.Extract(ctx, d)
		if err != nil {
			return err
		}
		return p.dispatch(ctx, seq, snk, out)
	}

	outcome, err := p.Searcher.Search(ctx, criteria, onResults)
	res.Outcome = outcome
	if err != nil {
		logger.Error("search failed", "state", outcome.State, "error", err)
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Records = snk.Finalize()
	res.Summary = sink.Summarize(res.Records)
	fmt.Fprintf(out, "\nBatch summary: %s\n", res.Summary)

	if p.Writer != nil {
		files, err := p.Writer.Write(res.Records)
		res.Files = files
		if err != nil {
			return res, fmt.Errorf("writing outputs: %w", err)
		}
	}
	if p.Archive != nil {
		run := archive.Run{
			ID:         res.RunID,
			Criteria:   criteria,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Summary:    res.Summary,
		}
		if err := p.Archive.SaveRun(ctx, run, res.Records); err != nil {
			return res, fmt.Errorf("archiving run: %w", err)
		}
	}

	logger.Info("run complete", "records", res.Summary.Total, "failed", res.Summary.Failed,
		"elapsed_ms", time.Since(started).Milliseconds())
	return res, nil
}

// dispatch consumes the record sequence on the session goroutine and hands
// every referenced record to the worker pool.
func (p *Pipeline) dispatch(ctx context.Context, seq iter.Seq[types.ResultRecord], snk *sink.Sink, out io.Writer) error {
	workers := p.Config.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for rec := range seq {
		if rec.DocumentRef == nil {
			fmt.Fprintf(out, "unreferenced: %d %s\n", rec.Index, rec.CaseName)
			if err := snk.Append(rec); err != nil {
				g.Wait()
				return err
			}
			continue
		}
		g.Go(func() error {
			p.retrieve(gctx, &rec)
			if rec.Method == types.MethodFailed {
				fmt.Fprintf(out, "failed:    %d %s (%s)\n", rec.Index, rec.CaseName, rec.RetrievalError)
			} else {
				fmt.Fprintf(out, "retrieved: %d %s (%s, %d pages)\n", rec.Index, rec.CaseName, rec.Method, rec.Pages)
			}
			return snk.Append(rec)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// retrieve fills rec with its document text, retrying download failures up
// to DownloadAttempts times in total.
func (p *Pipeline) retrieve(ctx context.Context, rec *types.ResultRecord) {
	attempts := max(p.Config.DownloadAttempts, 1)
	logger := p.logger().With("row", rec.Index)

	var (
		doc    types.RetrievedDocument
		method types.ConversionMethod
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		doc, method, err = p.Retriever.Retrieve(ctx, rec.Ref())
		if err == nil || !errors.Is(err, types.ErrDownloadFailed) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			logger.Warn("download failed, retrying", "attempt", attempt, "error", err)
		}
	}
	if err != nil {
		logger.Warn("retrieval failed", "ref", rec.Ref(), "error", err)
		rec.Method = types.MethodFailed
		rec.RetrievalError = err.Error()
		rec.Text = ""
		return
	}
	rec.Text = doc.Text
	rec.Method = method
	rec.Pages = len(doc.Pages)
	if warnings := doc.Warnings(); warnings != "" {
		logger.Warn("partial conversion", "ref", rec.Ref(), "warnings", warnings)
		rec.RetrievalError = warnings
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// lockedWriter serializes progress lines written from worker goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}
