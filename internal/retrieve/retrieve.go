// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve downloads judgment documents and converts them to text.
// Each page is read from the PDF text layer; pages with too little text are
// rasterized and read with optical recognition instead.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/pdiddy/judgment-engine/internal/httputil"
	"github.com/pdiddy/judgment-engine/internal/ocr"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// PageSeparator joins page texts in the converted document.
const PageSeparator = "\f"

// maxDocumentBytes caps a single download.
const maxDocumentBytes = 256 << 20

// Retriever fetches and converts documents. It is safe for concurrent use
// when its collaborators are.
type Retriever struct {
	Client     *http.Client
	Config     types.RetrievalConfig
	Texter     PageTexter
	Rasterizer Rasterizer
	Recognizer ocr.Recognizer

	// Store, when set, keeps downloaded documents and serves repeats from disk.
	Store *Store

	Logger *slog.Logger
}

// New creates a Retriever. Zero config values are replaced by defaults.
func New(client *http.Client, cfg types.RetrievalConfig, texter PageTexter, raster Rasterizer, rec ocr.Recognizer, logger *slog.Logger) *Retriever {
	full := types.PipelineConfig{Retrieval: cfg}
	full.ApplyDefaults()
	if client == nil {
		client = &http.Client{Timeout: full.Retrieval.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{
		Client:     client,
		Config:     full.Retrieval,
		Texter:     texter,
		Rasterizer: raster,
		Recognizer: rec,
		Logger:     logger,
	}
	if cfg.DocumentsDir != "" {
		r.Store = NewStore(cfg.DocumentsDir)
	}
	return r
}

// Retrieve downloads the document at ref and converts it. Download
// failures wrap types.ErrDownloadFailed and are not retried here beyond
// server throttling; conversion failures wrap types.ErrConversionFailed.
// Both report types.MethodFailed.
func (r *Retriever) Retrieve(ctx context.Context, ref string) (types.RetrievedDocument, types.ConversionMethod, error) {
	raw, err := r.fetch(ctx, ref)
	if err != nil {
		return types.RetrievedDocument{}, types.MethodFailed, err
	}
	return r.Convert(ctx, raw)
}

func (r *Retriever) fetch(ctx context.Context, ref string) ([]byte, error) {
	if r.Store != nil {
		if raw, ok := r.Store.Load(ref); ok {
			r.Logger.Debug("document cached", "ref", ref)
			return raw, nil
		}
	}
	raw, err := r.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	if r.Store != nil {
		if err := r.Store.Save(ref, raw); err != nil {
			r.Logger.Warn("saving document", "ref", ref, "error", err)
		}
	}
	return raw, nil
}

// Download fetches the raw document bytes.
func (r *Retriever) Download(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", types.ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", r.Config.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, r.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", types.ErrDownloadFailed, resp.StatusCode, ref)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", types.ErrDownloadFailed, err)
	}
	if len(raw) > maxDocumentBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", types.ErrDownloadFailed, maxDocumentBytes)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body from %s", types.ErrDownloadFailed, ref)
	}
	return raw, nil
}

// ConvertFile converts a PDF on disk.
func (r *Retriever) ConvertFile(ctx context.Context, path string) (types.RetrievedDocument, types.ConversionMethod, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.RetrievedDocument{}, types.MethodFailed, fmt.Errorf("%w: %v", types.ErrConversionFailed, err)
	}
	return r.Convert(ctx, raw)
}

// Convert extracts the text of every page. A page whose text density is
// below MinPageChars is rasterized and recognized in text mode. The method
// is optical when any page fell back to recognition and direct otherwise.
// When recognition fails for a page its direct text is kept and the page
// carries a warning; if that leaves the whole document blank, conversion
// fails.
func (r *Retriever) Convert(ctx context.Context, raw []byte) (types.RetrievedDocument, types.ConversionMethod, error) {
	doc := types.RetrievedDocument{Raw: raw}

	texts, err := r.Texter.PageTexts(raw)
	if err != nil {
		return doc, types.MethodFailed, fmt.Errorf("%w: %v", types.ErrConversionFailed, err)
	}
	if limit := r.Config.MaxPages; limit > 0 && len(texts) > limit {
		texts = texts[:limit]
	}

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return doc, types.MethodFailed, err
		}
		page := types.PageText{Number: i + 1, Text: text, Density: Density(text)}
		if page.Density < r.Config.MinPageChars {
			page.Fallback = true
			optical, err := r.recognizePage(ctx, raw, page.Number)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return doc, types.MethodFailed, err
				}
				page.Warning = "optical recognition failed: " + err.Error()
			} else {
				page.Text = optical
				page.Density = Density(optical)
				page.Optical = true
			}
		}
		doc.Pages = append(doc.Pages, page)
	}

	parts := make([]string, len(doc.Pages))
	for i, p := range doc.Pages {
		parts[i] = strings.TrimRight(p.Text, "\n")
	}
	doc.Text = strings.Join(parts, PageSeparator)

	if warnings := doc.Warnings(); warnings != "" && Density(doc.Text) == 0 {
		return doc, types.MethodFailed, fmt.Errorf("%w: no text recovered: %s",
			types.ErrConversionFailed, warnings)
	}
	if doc.Optical() {
		return doc, types.MethodOptical, nil
	}
	return doc, types.MethodDirect, nil
}

func (r *Retriever) recognizePage(ctx context.Context, raw []byte, page int) (string, error) {
	if r.Rasterizer == nil || r.Recognizer == nil {
		return "", errors.New("optical recognition not configured")
	}
	img, err := r.Rasterizer.RasterizePage(ctx, raw, page)
	if err != nil {
		return "", err
	}
	text, err := r.Recognizer.Recognize(ctx, img, ocr.ModeText)
	if err != nil {
		return "", err
	}
	r.Logger.Debug("page recognized optically", "page", page, "chars", len(text))
	return text, nil
}
