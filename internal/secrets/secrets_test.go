// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "proxy-url", "  http://proxy.test:3128  \n")
				writeFile(t, dir, "portal-user-agent", "Mozilla/5.0 (X11; Linux x86_64)\n")
				return dir
			},
			want: map[string]string{
				"proxy-url":         "http://proxy.test:3128",
				"portal-user-agent": "Mozilla/5.0 (X11; Linux x86_64)",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "proxy-url", "http://proxy.test:8080")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				"proxy-url": "http://proxy.test:8080",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "portal-user-agent", "ua")
				return dir
			},
			want: map[string]string{
				"portal-user-agent": "ua",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "proxy-url", "socks5://127.0.0.1:9050")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				"proxy-url": "socks5://127.0.0.1:9050",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// Create a file then remove read permission.
	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir)
	require.NoError(t, err)
	// The good file should still be returned; the bad file is skipped with a warning.
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestLoadSkipsBackupsAndOversized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "proxy-url", "http://proxy.test:3128")
	writeFile(t, dir, "proxy-url~", "http://old.test:3128")
	writeFile(t, dir, "portal-user-agent", strings.Repeat("x", maxSecretSize+1))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"proxy-url": "http://proxy.test:3128"}, got)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		secrets     map[string]string
		cfg         types.PipelineConfig
		wantProxy   string
		wantBrowser string
		wantUA      string
	}{
		{
			name:        "fills unset settings",
			secrets:     map[string]string{ProxyURL: "http://proxy.test:3128", PortalUserAgent: "ua/1"},
			wantProxy:   "http://proxy.test:3128",
			wantBrowser: "http://proxy.test:3128",
			wantUA:      "ua/1",
		},
		{
			name:    "configured values win",
			secrets: map[string]string{ProxyURL: "http://proxy.test:3128", PortalUserAgent: "ua/1"},
			cfg: types.PipelineConfig{
				Retrieval: types.RetrievalConfig{HTTPConfig: types.HTTPConfig{ProxyURL: "http://mine:1"}},
				Browser:   types.BrowserConfig{UserAgent: "mine"},
			},
			wantProxy:   "http://mine:1",
			wantBrowser: "http://proxy.test:3128",
			wantUA:      "mine",
		},
		{
			name:    "no secrets",
			secrets: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			Apply(tt.secrets, &cfg)
			assert.Equal(t, tt.wantProxy, cfg.Retrieval.ProxyURL)
			assert.Equal(t, tt.wantBrowser, cfg.Browser.ProxyURL)
			assert.Equal(t, tt.wantUA, cfg.Browser.UserAgent)
		})
	}
}
