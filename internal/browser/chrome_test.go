// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Advanced Search", "'Advanced Search'"},
		{"single quote", "Court's Order", `"Court's Order"`},
		{"both quotes", `a'b"c`, `concat('a', "'", 'b"c')`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, xpathLiteral(tt.in))
		})
	}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name    string
		loc     Locator
		wantSel string
	}{
		{"id uses attribute selector", ID("captcha_image"), `[id="captcha_image"]`},
		{"class", Class("btn-close"), ".btn-close"},
		{"css passthrough", CSS("button[id^=link]"), "button[id^=link]"},
		{"xpath passthrough", XPath("/html/body/div"), "/html/body/div"},
		{"link text becomes xpath", LinkText(" Advanced Search "), "//a[normalize-space(.)='Advanced Search']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, opt := query(tt.loc)
			assert.Equal(t, tt.wantSel, sel)
			assert.NotNil(t, opt)
		})
	}
}

func TestJSElements(t *testing.T) {
	tests := []struct {
		name string
		loc  Locator
		want string
	}{
		{"id", ID("report_body"), `document.getElementById("report_body")`},
		{"class", Class("caseDetailsTD"), `document.getElementsByClassName("caseDetailsTD")`},
		{"css", CSS("#viewFiles-body object"), `document.querySelectorAll("#viewFiles-body object")`},
		{"xpath", XPath("//tbody/tr"), `document.evaluate("//tbody/tr"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, jsElements(tt.loc), tt.want)
		})
	}
}

func TestJSElement_FirstOrNull(t *testing.T) {
	js := jsElement(ID("captcha"))
	assert.True(t, strings.HasSuffix(js, "[0] || null)"))
}

func TestJSStrings_NilIsEmptyArray(t *testing.T) {
	assert.Equal(t, "[]", jsStrings(nil))
	assert.Equal(t, `["a","b"]`, jsStrings([]string{"a", "b"}))
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, "id=captcha", ID("captcha").String())
	assert.Equal(t, "link-text=Advanced Search", LinkText("Advanced Search").String())
	assert.True(t, Rect{Width: 0, Height: 10}.Empty())
	assert.False(t, Rect{Width: 5, Height: 10}.Empty())
}

func TestChromeLauncher_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	launch := ChromeLauncher(types.BrowserConfig{Headless: true, WindowWidth: 800, WindowHeight: 600}, 0, nil)
	d, err := launch(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, d)
}
