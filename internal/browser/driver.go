// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser defines the browser-automation capability used to drive
// the judgment search portal, and a Chrome implementation backed by chromedp.
package browser

import (
	"context"
	"fmt"
	"time"
)

// By selects how a Locator's Value is interpreted.
type By int

const (
	ByID By = iota
	ByClass
	ByLinkText
	ByCSS
	ByXPath
)

func (b By) String() string {
	switch b {
	case ByID:
		return "id"
	case ByClass:
		return "class"
	case ByLinkText:
		return "link-text"
	case ByCSS:
		return "css"
	case ByXPath:
		return "xpath"
	}
	return "unknown"
}

// Locator identifies one element on the page. When several elements match,
// the first in document order is used.
type Locator struct {
	By    By
	Value string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// ID, Class, LinkText, CSS, and XPath build locators.
func ID(v string) Locator       { return Locator{By: ByID, Value: v} }
func Class(v string) Locator    { return Locator{By: ByClass, Value: v} }
func LinkText(v string) Locator { return Locator{By: ByLinkText, Value: v} }
func CSS(v string) Locator      { return Locator{By: ByCSS, Value: v} }
func XPath(v string) Locator    { return Locator{By: ByXPath, Value: v} }

// Rect is an element's position and size in page pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Driver is a single browser session. Implementations are not safe for
// concurrent use; a session is driven from one goroutine.
type Driver interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Geometry returns the element's rectangle in full-page coordinates.
	Geometry(ctx context.Context, loc Locator) (Rect, error)

	Click(ctx context.Context, loc Locator) error
	Clear(ctx context.Context, loc Locator) error
	SendKeys(ctx context.Context, loc Locator, text string) error

	// Visible reports immediately whether the element exists and is
	// displayed. It never waits.
	Visible(ctx context.Context, loc Locator) (bool, error)

	// WaitVisible blocks until the element is displayed or timeout elapses.
	WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) error

	// Text returns the element's rendered text.
	Text(ctx context.Context, loc Locator) (string, error)

	// Attribute returns the named attribute and whether it is present.
	Attribute(ctx context.Context, loc Locator, name string) (string, bool, error)

	// Count returns the number of elements matching loc.
	Count(ctx context.Context, loc Locator) (int, error)

	// OptionTexts lists the option labels of a <select> element.
	OptionTexts(ctx context.Context, loc Locator) ([]string, error)

	// SelectOptions selects exactly the options whose labels are in texts
	// and fires a change event.
	SelectOptions(ctx context.Context, loc Locator, texts []string) error

	// Close releases the session.
	Close() error
}

// Launcher opens a new browser session.
type Launcher func(ctx context.Context) (Driver, error)
