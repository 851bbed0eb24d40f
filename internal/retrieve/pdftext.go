// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"bytes"
	"context"
	"fmt"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// PageTexter extracts the embedded text layer of each page of a PDF.
type PageTexter interface {
	PageTexts(doc []byte) ([]string, error)
}

// Rasterizer renders a single 1-based PDF page as a PNG image.
type Rasterizer interface {
	RasterizePage(ctx context.Context, doc []byte, page int) ([]byte, error)
}

// PDFTexter reads page text with github.com/ledongthuc/pdf.
type PDFTexter struct{}

// PageTexts returns one string per page. A page whose text layer cannot be
// decoded yields "" so it falls through to optical recognition.
func (PDFTexter) PageTexts(doc []byte) (pages []string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("reading pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	n := r.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("reading pdf: no pages")
	}
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}

// Density counts the letters and digits in s.
func Density(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
