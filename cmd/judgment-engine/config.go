// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/judgment-engine/internal/browser"
	"github.com/pdiddy/judgment-engine/internal/challenge"
	"github.com/pdiddy/judgment-engine/internal/httputil"
	"github.com/pdiddy/judgment-engine/internal/ocr"
	"github.com/pdiddy/judgment-engine/internal/retrieve"
	"github.com/pdiddy/judgment-engine/internal/secrets"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// loadConfig builds the pipeline configuration from defaults, the config
// file, JUDGMENT_ENGINE_* environment variables, bound flags, and secrets,
// in increasing order of precedence (secrets only fill unset values).
func loadConfig() types.PipelineConfig {
	cfg := types.Defaults()

	p := &cfg.Portal
	setString(&p.URL, "portal.url")
	setInt(&p.MaxRetries, "portal.max_retries")
	setDuration(&p.ElementTimeout, "portal.element_timeout")
	setDuration(&p.ConfirmTimeout, "portal.confirm_timeout")
	setDuration(&p.PollInterval, "portal.poll_interval")
	setDuration(&p.SettleDelay, "portal.settle_delay")
	setDuration(&p.RevealTimeout, "portal.reveal_timeout")
	setString(&p.DebugDir, "portal.debug_dir")

	b := &cfg.Browser
	setBool(&b.Headless, "browser.headless")
	setString(&b.ExecPath, "browser.exec_path")
	setInt(&b.WindowWidth, "browser.window_width")
	setInt(&b.WindowHeight, "browser.window_height")
	setString(&b.UserAgent, "browser.user_agent")
	setString(&b.ProxyURL, "browser.proxy_url")

	o := &cfg.OCR
	setString(&o.Tesseract, "ocr.tesseract")
	setString(&o.Pdftoppm, "ocr.pdftoppm")
	setString(&o.Language, "ocr.language")
	setString(&o.TessdataDir, "ocr.tessdata_dir")
	setInt(&o.TextPSM, "ocr.text_psm")
	setInt(&o.DigitsPSM, "ocr.digits_psm")
	setInt(&o.DPI, "ocr.dpi")
	setString(&o.ContainerImage, "ocr.container_image")

	r := &cfg.Retrieval
	setDuration(&r.Timeout, "retrieval.timeout")
	setString(&r.UserAgent, "retrieval.user_agent")
	setString(&r.ProxyURL, "retrieval.proxy_url")
	setInt(&r.Workers, "retrieval.workers")
	setInt(&r.DownloadAttempts, "retrieval.download_attempts")
	setInt(&r.MinPageChars, "retrieval.min_page_chars")
	setInt(&r.MaxPages, "retrieval.max_pages")
	setString(&r.DocumentsDir, "retrieval.documents_dir")

	out := &cfg.Output
	setString(&out.Dir, "output.dir")
	setBool(&out.XLSX, "output.xlsx")
	setBool(&out.WriteText, "output.write_text")
	setString(&out.ArchivePath, "output.archive_path")

	secrets.Apply(loadedSecrets, &cfg)
	cfg.ApplyDefaults()
	return cfg
}

func setString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func setInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func setBool(dst *bool, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func setDuration(dst *time.Duration, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}

// portalBase returns the portal URL with a trailing slash so relative
// document references resolve inside it.
func portalBase(u string) string {
	return strings.TrimSuffix(u, "/") + "/"
}

// tools holds the recognition stack shared by the commands.
type tools struct {
	recognizer *ocr.Tesseract
	rasterizer *ocr.Pdftoppm
}

func newTools(ctx context.Context, cfg types.OCRConfig, logger *slog.Logger) (tools, error) {
	runner, err := ocr.NewRunner(ctx, cfg, logger)
	if err != nil {
		return tools{}, fmt.Errorf("setting up optical recognition: %w", err)
	}
	return tools{
		recognizer: ocr.NewTesseract(cfg, runner),
		rasterizer: ocr.NewPdftoppm(cfg, runner),
	}, nil
}

func (t tools) solver(debugDir string, logger *slog.Logger) *challenge.Solver {
	return challenge.New(t.recognizer, debugDir, logger)
}

func (t tools) retriever(client *http.Client, cfg types.RetrievalConfig, logger *slog.Logger) *retrieve.Retriever {
	return retrieve.New(client, cfg, retrieve.PDFTexter{}, t.rasterizer, t.recognizer, logger)
}

func newLauncher(cfg types.PipelineConfig, logger *slog.Logger) browser.Launcher {
	return browser.ChromeLauncher(cfg.Browser, cfg.Portal.ElementTimeout, logger)
}

func newClient(cfg types.RetrievalConfig) (*http.Client, error) {
	return httputil.NewClient(cfg.HTTPConfig)
}
