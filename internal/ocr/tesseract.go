// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ocr wraps the external optical recognition and page rasterization
// tools. Recognition is a pure function of image bytes and never touches a
// browser session.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Mode restricts what the recognizer may output.
type Mode int

const (
	// ModeText recognizes general text.
	ModeText Mode = iota
	// ModeDigits restricts output to digits.
	ModeDigits
)

func (m Mode) String() string {
	if m == ModeDigits {
		return "digits"
	}
	return "text"
}

// Recognizer converts an image to text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, mode Mode) (string, error)
}

// ErrEmptyImage is returned when Recognize is called without image data.
var ErrEmptyImage = errors.New("empty image")

var reBoxNoise = regexp.MustCompile(`[|_]{3,}`)

// Tesseract drives the tesseract binary through a Runner, streaming the
// image on stdin and reading text from stdout.
type Tesseract struct {
	cfg    types.OCRConfig
	runner Runner
}

// NewTesseract creates a recognizer. Empty settings fall back to defaults.
func NewTesseract(cfg types.OCRConfig, runner Runner) *Tesseract {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Tesseract{cfg: cfg, runner: runner}
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte, mode Mode) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}
	var out bytes.Buffer
	if err := t.runner.Run(ctx, t.cfg.Tesseract, t.args(mode), bytes.NewReader(image), &out); err != nil {
		return "", fmt.Errorf("tesseract %s: %w", mode, err)
	}
	return reBoxNoise.ReplaceAllString(out.String(), ""), nil
}

// args builds: tesseract stdin stdout -l <lang> [--psm N] [--tessdata-dir D] [digits]
func (t *Tesseract) args(mode Mode) []string {
	args := []string{"stdin", "stdout", "-l", t.cfg.Language}
	psm := t.cfg.TextPSM
	if mode == ModeDigits {
		psm = t.cfg.DigitsPSM
	}
	if psm > 0 {
		args = append(args, "--psm", strconv.Itoa(psm))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	if mode == ModeDigits {
		args = append(args, "digits")
	}
	return args
}
