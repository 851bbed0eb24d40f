// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package challenge solves the portal's numeric image challenge. It crops
// the challenge element out of a full-page screenshot and reads the digits
// with optical recognition.
package challenge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pdiddy/judgment-engine/internal/browser"
	"github.com/pdiddy/judgment-engine/internal/ocr"
)

// ErrEmptyRegion is returned when the challenge rectangle does not overlap
// the screenshot.
var ErrEmptyRegion = errors.New("challenge region outside screenshot")

// Capture is a rendered page together with the challenge element's
// rectangle in page pixels.
type Capture struct {
	Screenshot []byte
	Region     browser.Rect
}

// CaptureFrom reads the challenge element's geometry and a full-page
// screenshot from a live session. It does not change page state.
func CaptureFrom(ctx context.Context, d browser.Driver, loc browser.Locator) (Capture, error) {
	region, err := d.Geometry(ctx, loc)
	if err != nil {
		return Capture{}, fmt.Errorf("locating challenge image: %w", err)
	}
	shot, err := d.Screenshot(ctx)
	if err != nil {
		return Capture{}, fmt.Errorf("capturing page: %w", err)
	}
	return Capture{Screenshot: shot, Region: region}, nil
}

// Solver turns a Capture into a candidate answer.
type Solver struct {
	Recognizer ocr.Recognizer

	// DebugDir, when set, receives each crop as challenge-<n>.png.
	DebugDir string

	Logger *slog.Logger

	seq atomic.Int64
}

// New creates a Solver.
func New(r ocr.Recognizer, debugDir string, logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{Recognizer: r, DebugDir: debugDir, Logger: logger}
}

// Solve crops the challenge and returns the recognized digits. A crop with
// no recognizable digits yields "" and no error; the portal rejects the
// blank answer and the caller retries with a fresh challenge.
func (s *Solver) Solve(ctx context.Context, c Capture) (string, error) {
	crop, err := Crop(c.Screenshot, c.Region)
	if err != nil {
		return "", err
	}
	s.saveDebug(crop)

	raw, err := s.Recognizer.Recognize(ctx, crop, ocr.ModeDigits)
	if err != nil {
		return "", fmt.Errorf("recognizing challenge: %w", err)
	}
	return Digits(raw), nil
}

// Crop cuts region out of a PNG screenshot and returns it PNG-encoded. The
// region is clamped to the image bounds.
func Crop(screenshot []byte, region browser.Rect) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	r := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height).
		Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("%w: %+v", ErrEmptyRegion, region)
	}

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("screenshot image type %T cannot be cropped", img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, sub.SubImage(r)); err != nil {
		return nil, fmt.Errorf("encoding crop: %w", err)
	}
	return buf.Bytes(), nil
}

// Digits drops every character that is not an ASCII digit.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func (s *Solver) saveDebug(crop []byte) {
	if s.DebugDir == "" {
		return
	}
	n := s.seq.Add(1)
	if err := os.MkdirAll(s.DebugDir, 0o755); err != nil {
		s.logger().Warn("creating debug dir", "dir", s.DebugDir, "error", err)
		return
	}
	path := filepath.Join(s.DebugDir, fmt.Sprintf("challenge-%d.png", n))
	if err := os.WriteFile(path, crop, 0o644); err != nil {
		s.logger().Warn("saving challenge crop", "path", path, "error", err)
	}
}

func (s *Solver) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
