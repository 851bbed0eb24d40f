// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browsertest provides an in-memory browser.Driver for tests. Pages
// are modeled as a set of elements keyed by locator; click hooks script
// how the page reacts.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pdiddy/judgment-engine/internal/browser"
)

// ErrNoElement is returned for locators with no registered element.
var ErrNoElement = errors.New("no such element")

// Element is one scripted page element.
type Element struct {
	Shown    bool
	Text     string
	Rect     browser.Rect
	Attrs    map[string]string
	Options  []string
	Selected []string
	Value    string

	// N is reported by Count. Zero counts a registered element as one.
	N int

	// OnClick runs after the element is clicked or its selection changes.
	OnClick func(d *Driver)
}

// Driver is a fake browser session. All methods are safe for concurrent use.
type Driver struct {
	mu       sync.Mutex
	elements map[browser.Locator]*Element

	// Shot is returned by Screenshot.
	Shot []byte

	// OnNavigate runs on Navigate; a returned error fails the navigation.
	OnNavigate func(d *Driver, url string) error

	clicks  map[browser.Locator]int
	visited []string
	closed  int
}

// New returns an empty fake session.
func New() *Driver {
	return &Driver{
		elements: make(map[browser.Locator]*Element),
		clicks:   make(map[browser.Locator]int),
	}
}

// Launcher returns a browser.Launcher that always hands out d.
func (d *Driver) Launcher() browser.Launcher {
	return func(context.Context) (browser.Driver, error) { return d, nil }
}

// Set registers or replaces the element at loc.
func (d *Driver) Set(loc browser.Locator, e *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[loc] = e
}

// Remove deletes the element at loc from the page.
func (d *Driver) Remove(loc browser.Locator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, loc)
}

// Show toggles an element's visibility, registering it if needed.
func (d *Driver) Show(loc browser.Locator, shown bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.element(loc).Shown = shown
}

// SetAttr sets an attribute on the element at loc, registering it if needed.
func (d *Driver) SetAttr(loc browser.Locator, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.element(loc)
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[name] = value
}

// Get returns the element at loc, or nil.
func (d *Driver) Get(loc browser.Locator) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elements[loc]
}

// Clicks reports how many times loc was clicked.
func (d *Driver) Clicks(loc browser.Locator) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clicks[loc]
}

// Visited lists the navigated URLs in order.
func (d *Driver) Visited() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.visited)
}

// Closed reports how many times Close was called.
func (d *Driver) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) element(loc browser.Locator) *Element {
	e, ok := d.elements[loc]
	if !ok {
		e = &Element{}
		d.elements[loc] = e
	}
	return e
}

func (d *Driver) lookup(loc browser.Locator) (*Element, error) {
	e, ok := d.elements[loc]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, loc)
	}
	return e, nil
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	d.visited = append(d.visited, url)
	hook := d.OnNavigate
	d.mu.Unlock()
	if hook != nil {
		return hook(d, url)
	}
	return nil
}

func (d *Driver) Screenshot(context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Shot == nil {
		return nil, errors.New("no screenshot scripted")
	}
	return slices.Clone(d.Shot), nil
}

func (d *Driver) Geometry(_ context.Context, loc browser.Locator) (browser.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(loc)
	if err != nil {
		return browser.Rect{}, err
	}
	return e.Rect, nil
}

func (d *Driver) Click(_ context.Context, loc browser.Locator) error {
	d.mu.Lock()
	e, err := d.lookup(loc)
	if err == nil && !e.Shown {
		err = fmt.Errorf("element %s not visible", loc)
	}
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.clicks[loc]++
	hook := e.OnClick
	d.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Driver) Clear(_ context.Context, loc browser.Locator) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(loc)
	if err != nil {
		return err
	}
	e.Value = ""
	return nil
}

func (d *Driver) SendKeys(_ context.Context, loc browser.Locator, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(loc)
	if err != nil {
		return err
	}
	e.Value += text
	return nil
}

func (d *Driver) Visible(_ context.Context, loc browser.Locator) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[loc]
	return ok && e.Shown, nil
}

// WaitVisible checks once; scripted pages change only through hooks.
func (d *Driver) WaitVisible(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	if ok, _ := d.Visible(ctx, loc); ok {
		return nil
	}
	return fmt.Errorf("waiting %s for %s: %w", timeout, loc, context.DeadlineExceeded)
}

func (d *Driver) Text(_ context.Context, loc browser.Locator) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(loc)
	if err != nil {
		return "", err
	}
	return e.Text, nil
}

func (d *Driver) Attribute(_ context.Context, loc browser.Locator, name string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[loc]
	if !ok {
		return "", false, nil
	}
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (d *Driver) Count(_ context.Context, loc browser.Locator) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[loc]
	switch {
	case !ok:
		return 0, nil
	case e.N > 0:
		return e.N, nil
	}
	return 1, nil
}

func (d *Driver) OptionTexts(_ context.Context, loc browser.Locator) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.lookup(loc)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.Options), nil
}

func (d *Driver) SelectOptions(_ context.Context, loc browser.Locator, texts []string) error {
	d.mu.Lock()
	e, err := d.lookup(loc)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	for _, t := range texts {
		if !slices.Contains(e.Options, t) {
			d.mu.Unlock()
			return fmt.Errorf("option %q not in %s", t, loc)
		}
	}
	e.Selected = slices.Clone(texts)
	hook := e.OnClick
	d.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}
