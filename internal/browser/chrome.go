// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Chrome is a Driver backed by a headless Chrome tab through chromedp.
type Chrome struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	logger      *slog.Logger
	closed      bool
}

// ChromeLauncher returns a Launcher that starts a Chrome process per
// session. timeout bounds every action that does not carry its own.
func ChromeLauncher(cfg types.BrowserConfig, timeout time.Duration, logger *slog.Logger) Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) (Driver, error) {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		)
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}
		if cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
		}
		if cfg.ProxyURL != "" {
			opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
		}

		// The browser outlives the launching context; Close is the only
		// release path once launch returns. Until then ctx can abort the
		// start-up.
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
		stopAbort := context.AfterFunc(ctx, cancelAlloc)
		tab, cancelTab := chromedp.NewContext(allocCtx,
			chromedp.WithLogf(func(format string, args ...any) {
				logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
			}),
			chromedp.WithErrorf(func(format string, args ...any) {
				logger.Warn(fmt.Sprintf(format, args...), "component", "chromedp")
			}),
		)
		err := chromedp.Run(tab)
		if !stopAbort() {
			err = ctx.Err()
		}
		if err != nil {
			cancelTab()
			cancelAlloc()
			return nil, fmt.Errorf("starting browser: %w", err)
		}
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		logger.Debug("browser session started", "headless", cfg.Headless)
		return &Chrome{
			tab:         tab,
			cancelTab:   cancelTab,
			cancelAlloc: cancelAlloc,
			timeout:     timeout,
			logger:      logger,
		}, nil
	}
}

// run executes actions on the tab, bounded by timeout (or the session
// default) and by the caller's context.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if c.closed {
		return fmt.Errorf("browser session closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.timeout
	}
	runCtx, cancel := context.WithTimeout(c.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, 0, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 produces PNG.
	if err := c.run(ctx, 0, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

type geometryResult struct {
	Found  bool    `json:"found"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (c *Chrome) Geometry(ctx context.Context, loc Locator) (Rect, error) {
	js := fmt.Sprintf(`(() => {
	const e = %s;
	if (!e) return {found: false};
	const r = e.getBoundingClientRect();
	return {found: true, x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height};
})()`, jsElement(loc))
	var res geometryResult
	if err := c.run(ctx, 0, chromedp.Evaluate(js, &res)); err != nil {
		return Rect{}, fmt.Errorf("geometry of %s: %w", loc, err)
	}
	if !res.Found {
		return Rect{}, fmt.Errorf("geometry of %s: element not found", loc)
	}
	return Rect{
		X:      int(res.X),
		Y:      int(res.Y),
		Width:  int(res.Width + 0.5),
		Height: int(res.Height + 0.5),
	}, nil
}

func (c *Chrome) Click(ctx context.Context, loc Locator) error {
	sel, opt := query(loc)
	if err := c.run(ctx, 0, chromedp.Click(sel, opt, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("clicking %s: %w", loc, err)
	}
	return nil
}

func (c *Chrome) Clear(ctx context.Context, loc Locator) error {
	sel, opt := query(loc)
	if err := c.run(ctx, 0, chromedp.Clear(sel, opt)); err != nil {
		return fmt.Errorf("clearing %s: %w", loc, err)
	}
	return nil
}

func (c *Chrome) SendKeys(ctx context.Context, loc Locator, text string) error {
	sel, opt := query(loc)
	if err := c.run(ctx, 0, chromedp.SendKeys(sel, text, opt)); err != nil {
		return fmt.Errorf("typing into %s: %w", loc, err)
	}
	return nil
}

func (c *Chrome) Visible(ctx context.Context, loc Locator) (bool, error) {
	js := fmt.Sprintf(`(() => {
	const e = %s;
	if (!e) return false;
	const s = window.getComputedStyle(e);
	if (s.display === 'none' || s.visibility === 'hidden' || s.opacity === '0') return false;
	const r = e.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
})()`, jsElement(loc))
	var visible bool
	if err := c.run(ctx, 0, chromedp.Evaluate(js, &visible)); err != nil {
		return false, fmt.Errorf("visibility of %s: %w", loc, err)
	}
	return visible, nil
}

func (c *Chrome) WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) error {
	sel, opt := query(loc)
	if err := c.run(ctx, timeout, chromedp.WaitVisible(sel, opt)); err != nil {
		return fmt.Errorf("waiting for %s: %w", loc, err)
	}
	return nil
}

type textResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

func (c *Chrome) Text(ctx context.Context, loc Locator) (string, error) {
	js := fmt.Sprintf(`(() => {
	const e = %s;
	if (!e) return {found: false};
	return {found: true, text: e.innerText || e.textContent || ''};
})()`, jsElement(loc))
	var res textResult
	if err := c.run(ctx, 0, chromedp.Evaluate(js, &res)); err != nil {
		return "", fmt.Errorf("text of %s: %w", loc, err)
	}
	if !res.Found {
		return "", fmt.Errorf("text of %s: element not found", loc)
	}
	return res.Text, nil
}

type attrResult struct {
	Found   bool   `json:"found"`
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

func (c *Chrome) Attribute(ctx context.Context, loc Locator, name string) (string, bool, error) {
	js := fmt.Sprintf(`(() => {
	const e = %s;
	if (!e) return {found: false};
	const v = e.getAttribute(%s);
	return {found: true, present: v !== null, value: v || ''};
})()`, jsElement(loc), jsString(name))
	var res attrResult
	if err := c.run(ctx, 0, chromedp.Evaluate(js, &res)); err != nil {
		return "", false, fmt.Errorf("attribute %s of %s: %w", name, loc, err)
	}
	if !res.Found {
		return "", false, nil
	}
	return res.Value, res.Present, nil
}

func (c *Chrome) Count(ctx context.Context, loc Locator) (int, error) {
	var n int
	if err := c.run(ctx, 0, chromedp.Evaluate(jsElements(loc)+".length", &n)); err != nil {
		return 0, fmt.Errorf("counting %s: %w", loc, err)
	}
	return n, nil
}

type optionsResult struct {
	Found   bool     `json:"found"`
	Options []string `json:"options"`
}

func (c *Chrome) OptionTexts(ctx context.Context, loc Locator) ([]string, error) {
	js := fmt.Sprintf(`(() => {
	const e = %s;
	if (!e || !e.options) return {found: false};
	return {found: true, options: Array.from(e.options).map(o => o.text.trim())};
})()`, jsElement(loc))
	var res optionsResult
	if err := c.run(ctx, 0, chromedp.Evaluate(js, &res)); err != nil {
		return nil, fmt.Errorf("options of %s: %w", loc, err)
	}
	if !res.Found {
		return nil, fmt.Errorf("options of %s: select element not found", loc)
	}
	return res.Options, nil
}

func (c *Chrome) SelectOptions(ctx context.Context, loc Locator, texts []string) error {
	js := fmt.Sprintf(`(() => {
	const e = %s;
	if (!e || !e.options) return -1;
	const want = new Set(%s);
	let n = 0;
	for (const o of e.options) {
		o.selected = want.has(o.text.trim());
		if (o.selected) n++;
	}
	e.dispatchEvent(new Event('change', {bubbles: true}));
	return n;
})()`, jsElement(loc), jsStrings(texts))
	var n int
	if err := c.run(ctx, 0, chromedp.Evaluate(js, &n)); err != nil {
		return fmt.Errorf("selecting options of %s: %w", loc, err)
	}
	if n < 0 {
		return fmt.Errorf("selecting options of %s: select element not found", loc)
	}
	if n == 0 && len(texts) > 0 {
		return fmt.Errorf("selecting options of %s: none of %d options matched", loc, len(texts))
	}
	return nil
}

// Close shuts down the tab and the browser process. Calling it more than
// once is a no-op.
func (c *Chrome) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := chromedp.Cancel(c.tab)
	c.cancelTab()
	c.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

// query maps a Locator to a chromedp selector and query option.
func query(loc Locator) (string, chromedp.QueryOption) {
	switch loc.By {
	case ByID:
		return fmt.Sprintf(`[id=%s]`, jsString(loc.Value)), chromedp.ByQuery
	case ByClass:
		return "." + loc.Value, chromedp.ByQuery
	case ByLinkText:
		return linkTextXPath(loc.Value), chromedp.BySearch
	case ByXPath:
		return loc.Value, chromedp.BySearch
	default:
		return loc.Value, chromedp.ByQuery
	}
}

// jsElements returns a JavaScript expression evaluating to an array of the
// elements matching loc, in document order.
func jsElements(loc Locator) string {
	switch loc.By {
	case ByID:
		return fmt.Sprintf(`[document.getElementById(%s)].filter(Boolean)`, jsString(loc.Value))
	case ByClass:
		return fmt.Sprintf(`Array.from(document.getElementsByClassName(%s))`, jsString(loc.Value))
	case ByLinkText:
		return jsXPath(linkTextXPath(loc.Value))
	case ByXPath:
		return jsXPath(loc.Value)
	default:
		return fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`, jsString(loc.Value))
	}
}

// jsElement returns an expression evaluating to the first match or null.
func jsElement(loc Locator) string {
	return "(" + jsElements(loc) + "[0] || null)"
}

func jsXPath(xp string) string {
	return fmt.Sprintf(`(() => {
	const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
	return out;
})()`, jsString(xp))
}

func linkTextXPath(text string) string {
	return fmt.Sprintf(`//a[normalize-space(.)=%s]`, xpathLiteral(strings.TrimSpace(text)))
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}
