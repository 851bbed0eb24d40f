// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Pdftoppm renders single PDF pages to PNG with the pdftoppm binary.
type Pdftoppm struct {
	bin    string
	dpi    int
	runner Runner
}

// NewPdftoppm creates a rasterizer from the OCR settings.
func NewPdftoppm(cfg types.OCRConfig, runner Runner) *Pdftoppm {
	bin := cfg.Pdftoppm
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = 300
	}
	return &Pdftoppm{bin: bin, dpi: dpi, runner: runner}
}

// RasterizePage renders the 1-based page of doc as a PNG image.
func (p *Pdftoppm) RasterizePage(ctx context.Context, doc []byte, page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("rasterizing page %d: page numbers start at 1", page)
	}
	n := strconv.Itoa(page)
	// pdftoppm -f N -l N -r DPI -png -singlefile - (reads stdin, writes stdout)
	args := []string{"-f", n, "-l", n, "-r", strconv.Itoa(p.dpi), "-png", "-singlefile", "-"}

	var out bytes.Buffer
	if err := p.runner.Run(ctx, p.bin, args, bytes.NewReader(doc), &out); err != nil {
		return nil, fmt.Errorf("rasterizing page %d: %w", page, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("rasterizing page %d: pdftoppm produced no image", page)
	}
	return out.Bytes(), nil
}
