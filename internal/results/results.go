// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package results turns the portal's results table into ResultRecords.
// Revealing a row's document reference clicks the row and reads the shared
// detail pane, so rows are processed strictly one at a time.
package results

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pdiddy/judgment-engine/internal/browser"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

const (
	segmentSep = " | "
	keyValSep  = " : "
)

// ErrNoResultsTable is returned when the results page has no table.
var ErrNoResultsTable = errors.New("results table not found")

// ErrNoReference is returned when a reveal surfaces no new document
// reference before the timeout.
var ErrNoReference = errors.New("no document reference revealed")

// Selectors locates the results table and the detail pane.
type Selectors struct {
	// Table is the results table body.
	Table browser.Locator

	// Rows is an XPath expression matching every result row.
	Rows string

	// Cell and Title are XPath expressions relative to a row.
	Cell  string
	Title string

	// Document is the embedded object showing the judgment, and
	// DocumentAttr the attribute carrying its URL.
	Document     browser.Locator
	DocumentAttr string

	// CloseDetail dismisses the detail pane.
	CloseDetail browser.Locator
}

// DefaultSelectors returns the locators for the live portal.
func DefaultSelectors() Selectors {
	return Selectors{
		Table:        browser.ID("report_body"),
		Rows:         "//tbody[@id='report_body']/tr",
		Cell:         "//td[contains(concat(' ', normalize-space(@class), ' '), ' caseDetailsTD ')]",
		Title:        "//button[starts-with(@id, 'link')]",
		Document:     browser.CSS("#viewFiles-body object"),
		DocumentAttr: "data",
		CloseDetail:  browser.CSS("#viewFiles .btn-close"),
	}
}

func (s Selectors) rows() browser.Locator {
	return browser.XPath(s.Rows)
}

// row returns the locator of the zero-based row i.
func (s Selectors) row(i int) string {
	return fmt.Sprintf("(%s)[%d]", s.Rows, i+1)
}

func (s Selectors) cell(i int) browser.Locator {
	return browser.XPath(s.row(i) + s.Cell)
}

func (s Selectors) title(i int) browser.Locator {
	return browser.XPath(s.row(i) + s.Title)
}

// ParseMetadata splits a composite metadata cell such as
// "Case No : CRL.A 12/2020 | Judge : J. Rao" into ordered fields. Keys and
// values are trimmed and a repeated key keeps its last value. A segment
// without the key separator fails with types.ErrRowParse; the fields parsed
// so far are returned with the error.
func ParseMetadata(cell string) (types.Fields, error) {
	if strings.TrimSpace(cell) == "" {
		return nil, fmt.Errorf("%w: empty metadata cell", types.ErrRowParse)
	}
	var fields types.Fields
	for i, seg := range strings.Split(cell, segmentSep) {
		key, val, ok := strings.Cut(seg, keyValSep)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fields, fmt.Errorf("%w: segment %d %q has no key", types.ErrRowParse, i+1, strings.TrimSpace(seg))
		}
		fields.Set(key, strings.TrimSpace(val))
	}
	return fields, nil
}

// Handle identifies a revealed row. Stale is the reference the detail pane
// still showed when the row was clicked, or "" when the pane was hidden. A
// reference equal to Stale is not accepted until the pane has been seen
// hidden and shown again.
type Handle struct {
	Row   int
	Stale string
}

// Extractor reads result rows from a live results page.
type Extractor struct {
	Selectors Selectors

	// Base resolves relative document references.
	Base *url.URL

	// RevealTimeout bounds the wait for a row's document reference.
	RevealTimeout time.Duration

	// PollInterval is the delay between detail pane checks.
	PollInterval time.Duration

	Logger *slog.Logger
}

// New creates an Extractor for the portal at baseURL.
func New(baseURL string, cfg types.PortalConfig, logger *slog.Logger) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing portal url: %w", err)
	}
	full := types.PipelineConfig{Portal: cfg}
	full.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		Selectors:     DefaultSelectors(),
		Base:          base,
		RevealTimeout: full.Portal.RevealTimeout,
		PollInterval:  full.Portal.PollInterval,
		Logger:        logger,
	}, nil
}

// Extract counts the result rows and returns a sequence yielding one record
// per row in table order. The sequence drives the browser as it is ranged
// over and can be consumed once; later ranges yield nothing. Row failures
// are recorded on the record and never end the sequence.
func (e *Extractor) Extract(ctx context.Context, d browser.Driver) (iter.Seq[types.ResultRecord], error) {
	if n, err := d.Count(ctx, e.Selectors.Table); err != nil {
		return nil, fmt.Errorf("locating results table: %w", err)
	} else if n == 0 {
		return nil, ErrNoResultsTable
	}
	n, err := d.Count(ctx, e.Selectors.rows())
	if err != nil {
		return nil, fmt.Errorf("counting result rows: %w", err)
	}
	e.logger().Info("results listed", "rows", n)

	var used atomic.Bool
	return func(yield func(types.ResultRecord) bool) {
		if used.Swap(true) {
			return
		}
		for i := range n {
			if ctx.Err() != nil {
				return
			}
			if !yield(e.record(ctx, d, i)) {
				return
			}
		}
	}, nil
}

// record extracts row i. It never fails; problems are stored on the record.
func (e *Extractor) record(ctx context.Context, d browser.Driver, i int) types.ResultRecord {
	rec := types.ResultRecord{Index: i}
	logger := e.logger().With("row", i)

	if title, err := d.Text(ctx, e.Selectors.title(i)); err == nil {
		rec.CaseName = strings.TrimSpace(title)
	} else {
		logger.Warn("reading case title", "error", err)
	}

	cell, err := d.Text(ctx, e.Selectors.cell(i))
	if err != nil {
		rec.ParseError = fmt.Errorf("%w: reading metadata cell: %v", types.ErrRowParse, err).Error()
		logger.Warn("row skipped", "error", rec.ParseError)
		return rec
	}
	fields, err := ParseMetadata(cell)
	rec.Fields = fields
	if err != nil {
		rec.ParseError = err.Error()
		logger.Warn("row skipped", "error", err)
		return rec
	}

	h, err := e.Reveal(ctx, d, i)
	if err != nil {
		rec.RetrievalError = err.Error()
		logger.Warn("revealing document", "error", err)
		return rec
	}
	ref, err := e.ReadReference(ctx, d, h)
	e.closeDetail(ctx, d)
	if err != nil {
		rec.RetrievalError = err.Error()
		logger.Warn("reading document reference", "error", err)
		return rec
	}
	rec.DocumentRef = &ref
	return rec
}

// Reveal notes the reference shown by a still-visible detail pane and
// clicks row's case-title control. The click replaces the pane's contents,
// so calls must be sequenced and each followed by ReadReference.
func (e *Extractor) Reveal(ctx context.Context, d browser.Driver, row int) (Handle, error) {
	stale, _ := e.currentReference(ctx, d)
	if err := d.Click(ctx, e.Selectors.title(row)); err != nil {
		return Handle{}, fmt.Errorf("clicking case title: %w", err)
	}
	return Handle{Row: row, Stale: stale}, nil
}

// ReadReference waits for the detail pane to show a fresh document
// reference and returns it as an absolute URL. A reference equal to the
// handle's stale one counts as fresh once the pane has been hidden since
// the reveal, so rows sharing one judgment each get it.
func (e *Extractor) ReadReference(ctx context.Context, d browser.Driver, h Handle) (string, error) {
	deadline := time.Now().Add(e.RevealTimeout)
	stale := h.Stale
	for {
		shown, err := d.Visible(ctx, e.Selectors.Document)
		if err != nil {
			return "", err
		}
		if !shown {
			stale = ""
		} else if ref, err := e.currentReference(ctx, d); err != nil {
			return "", err
		} else if ref != "" && ref != stale {
			return e.resolve(ref)
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("%w: row %d after %s", ErrNoReference, h.Row, e.RevealTimeout)
		}
		if err := sleep(ctx, e.PollInterval); err != nil {
			return "", err
		}
	}
}

func (e *Extractor) currentReference(ctx context.Context, d browser.Driver) (string, error) {
	shown, err := d.Visible(ctx, e.Selectors.Document)
	if err != nil || !shown {
		return "", err
	}
	v, ok, err := d.Attribute(ctx, e.Selectors.Document, e.Selectors.DocumentAttr)
	if err != nil || !ok {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

func (e *Extractor) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing document reference %q: %w", ref, err)
	}
	if e.Base == nil {
		return u.String(), nil
	}
	return e.Base.ResolveReference(u).String(), nil
}

// closeDetail dismisses the detail pane when it offers a close control and
// waits, up to RevealTimeout, for the document object to hide or detach.
func (e *Extractor) closeDetail(ctx context.Context, d browser.Driver) {
	if shown, _ := d.Visible(ctx, e.Selectors.CloseDetail); !shown {
		return
	}
	if err := d.Click(ctx, e.Selectors.CloseDetail); err != nil {
		e.logger().Debug("closing detail pane", "error", err)
		return
	}
	deadline := time.Now().Add(e.RevealTimeout)
	for {
		shown, err := d.Visible(ctx, e.Selectors.Document)
		if err != nil || !shown {
			return
		}
		if !time.Now().Before(deadline) {
			e.logger().Debug("detail pane still shown after close")
			return
		}
		if sleep(ctx, e.PollInterval) != nil {
			return
		}
	}
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
