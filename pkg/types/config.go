// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "judgment-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// ProxyURL routes HTTP and browser traffic through a proxy when set.
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty"`
}

// PortalConfig holds settings for navigating the judgment search portal.
type PortalConfig struct {
	// URL is the search portal home page.
	URL string `json:"url" yaml:"url"`

	// MaxRetries caps verification retries after the first attempt (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// ElementTimeout bounds every wait for a UI element (default 10s).
	ElementTimeout time.Duration `json:"element_timeout" yaml:"element_timeout"`

	// ConfirmTimeout bounds the wait for a verification verdict (default 8s).
	ConfirmTimeout time.Duration `json:"confirm_timeout" yaml:"confirm_timeout"`

	// PollInterval is the delay between UI state checks (default 250ms).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// SettleDelay is the pause after dismissing dialogs or refreshing the
	// challenge image (default 1s).
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay"`

	// RevealTimeout bounds the wait for a row's document reference (default 10s).
	RevealTimeout time.Duration `json:"reveal_timeout" yaml:"reveal_timeout"`

	// DebugDir, when set, receives every challenge crop as a PNG.
	DebugDir string `json:"debug_dir,omitempty" yaml:"debug_dir,omitempty"`
}

// BrowserConfig holds settings for the automated browser session.
type BrowserConfig struct {
	// Headless runs the browser without a window (default true).
	Headless bool `json:"headless" yaml:"headless"`

	// ExecPath overrides the browser binary. Empty uses the default lookup.
	ExecPath string `json:"exec_path,omitempty" yaml:"exec_path,omitempty"`

	// WindowWidth and WindowHeight size the viewport (default 1366x900).
	WindowWidth  int `json:"window_width" yaml:"window_width"`
	WindowHeight int `json:"window_height" yaml:"window_height"`

	// UserAgent overrides the browser user agent when set.
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`

	// ProxyURL is passed to the browser as its proxy server.
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty"`
}

// OCRConfig holds settings for the external recognition and rasterization tools.
type OCRConfig struct {
	// Tesseract and Pdftoppm name the binaries (defaults "tesseract", "pdftoppm").
	Tesseract string `json:"tesseract" yaml:"tesseract"`
	Pdftoppm  string `json:"pdftoppm" yaml:"pdftoppm"`

	// Language is the tesseract language (default "eng").
	Language string `json:"language" yaml:"language"`

	// TessdataDir overrides the tesseract data directory.
	TessdataDir string `json:"tessdata_dir,omitempty" yaml:"tessdata_dir,omitempty"`

	// TextPSM and DigitsPSM set the page segmentation mode per recognition
	// mode. Zero leaves the tesseract default.
	TextPSM   int `json:"text_psm" yaml:"text_psm"`
	DigitsPSM int `json:"digits_psm" yaml:"digits_psm"`

	// DPI is the rasterization resolution for scanned pages (default 300).
	DPI int `json:"dpi" yaml:"dpi"`

	// ContainerImage, when set, runs the tools inside this image using the
	// detected container runtime instead of local binaries.
	ContainerImage string `json:"container_image,omitempty" yaml:"container_image,omitempty"`
}

// RetrievalConfig holds settings for document download and conversion.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline"`

	// Workers is the size of the retrieval worker pool (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// DownloadAttempts is how many times a failed download is tried in
	// total (default 1).
	DownloadAttempts int `json:"download_attempts" yaml:"download_attempts"`

	// MinPageChars is the density below which a page is re-read with
	// optical recognition (default 20).
	MinPageChars int `json:"min_page_chars" yaml:"min_page_chars"`

	// MaxPages caps the number of pages converted per document. Zero means no limit.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// DocumentsDir, when set, keeps a copy of every downloaded document.
	DocumentsDir string `json:"documents_dir,omitempty" yaml:"documents_dir,omitempty"`
}

// OutputConfig holds settings for the files written after a run.
type OutputConfig struct {
	// Dir is the output directory (contains metadata.csv, text/).
	Dir string `json:"dir" yaml:"dir"`

	// XLSX also writes metadata.xlsx.
	XLSX bool `json:"xlsx" yaml:"xlsx"`

	// WriteText writes one text file per record under text/.
	WriteText bool `json:"write_text" yaml:"write_text"`

	// ArchivePath, when set, stores the run in a SQLite archive.
	ArchivePath string `json:"archive_path,omitempty" yaml:"archive_path,omitempty"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Portal    PortalConfig    `json:"portal" yaml:"portal"`
	Browser   BrowserConfig   `json:"browser" yaml:"browser"`
	OCR       OCRConfig       `json:"ocr" yaml:"ocr"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Output    OutputConfig    `json:"output" yaml:"output"`
}

// DefaultPortalURL is the eCourts judgment search portal.
const DefaultPortalURL = "https://judgments.ecourts.gov.in/pdfsearch"

// DefaultUserAgent is sent with document downloads.
const DefaultUserAgent = "judgment-engine/0.1"

// Defaults returns a configuration with every default applied.
func Defaults() PipelineConfig {
	var c PipelineConfig
	c.ApplyDefaults()
	c.Browser.Headless = true
	return c
}

// ApplyDefaults fills zero-valued settings with their defaults.
func (c *PipelineConfig) ApplyDefaults() {
	p := &c.Portal
	if p.URL == "" {
		p.URL = DefaultPortalURL
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 5
	}
	if p.ElementTimeout <= 0 {
		p.ElementTimeout = 10 * time.Second
	}
	if p.ConfirmTimeout <= 0 {
		p.ConfirmTimeout = 8 * time.Second
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 250 * time.Millisecond
	}
	// A negative SettleDelay disables the pause.
	if p.SettleDelay == 0 {
		p.SettleDelay = time.Second
	}
	if p.RevealTimeout <= 0 {
		p.RevealTimeout = 10 * time.Second
	}

	b := &c.Browser
	if b.WindowWidth <= 0 {
		b.WindowWidth = 1366
	}
	if b.WindowHeight <= 0 {
		b.WindowHeight = 900
	}

	o := &c.OCR
	if o.Tesseract == "" {
		o.Tesseract = "tesseract"
	}
	if o.Pdftoppm == "" {
		o.Pdftoppm = "pdftoppm"
	}
	if o.Language == "" {
		o.Language = "eng"
	}
	if o.DPI <= 0 {
		o.DPI = 300
	}

	r := &c.Retrieval
	if r.Timeout <= 0 {
		r.Timeout = 60 * time.Second
	}
	if r.UserAgent == "" {
		r.UserAgent = DefaultUserAgent
	}
	if r.Workers <= 0 {
		r.Workers = 4
	}
	if r.DownloadAttempts <= 0 {
		r.DownloadAttempts = 1
	}
	if r.MinPageChars <= 0 {
		r.MinPageChars = 20
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
}
