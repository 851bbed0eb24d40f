// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/pdiddy/judgment-engine/internal/container"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Runner executes an external tool, feeding stdin and collecting stdout.
// Tests stub it to avoid depending on installed binaries.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

// LocalRunner runs tools installed on the host.
type LocalRunner struct {
	Logger *slog.Logger
}

func (r LocalRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	var errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)
	if err != nil {
		logger.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
		if msg := strings.TrimSpace(errb.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, truncate(msg, 512))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	logger.Debug("exec ok",
		"cmd", name,
		"args", strings.Join(args, " "),
		"duration_ms", dur.Milliseconds(),
		"stderr_bytes", errb.Len(),
	)
	return nil
}

// ContainerRunner runs tools inside Image using a container runtime.
// The tool name becomes the first argument after the image.
type ContainerRunner struct {
	Runtime container.Runtime
	Image   string
}

func (r ContainerRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	full := make([]string, 0, len(args)+1)
	full = append(full, name)
	full = append(full, args...)
	return r.Runtime.Run(ctx, r.Image, full, stdin, stdout)
}

// NewRunner returns a ContainerRunner when cfg names a container image and
// a LocalRunner otherwise.
func NewRunner(ctx context.Context, cfg types.OCRConfig, logger *slog.Logger) (Runner, error) {
	if cfg.ContainerImage == "" {
		return LocalRunner{Logger: logger}, nil
	}
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return nil, err
	}
	if err := rt.ImageExists(ctx, cfg.ContainerImage); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("running ocr tools in container", "runtime", rt.Name(), "image", cfg.ContainerImage)
	}
	return ContainerRunner{Runtime: rt, Image: cfg.ContainerImage}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
