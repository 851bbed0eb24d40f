// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file holds one secret: the file name is the key and the trimmed
// contents are the value.
//
// Supported key files: proxy-url, portal-user-agent.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Key file names.
const (
	ProxyURL        = "proxy-url"
	PortalUserAgent = "portal-user-agent"
)

// maxSecretSize bounds a single secret file.
const maxSecretSize = 64 << 10

// Load reads every secret file in dir and returns trimmed values by file
// name. A missing directory yields an empty map. Hidden files, editor
// backups, oversized files and unreadable files are skipped with a warning.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			continue
		}
		value, err := readSecret(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("skipping secret", "name", name, "error", err)
			continue
		}
		if value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

func readSecret(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxSecretSize {
		return "", fmt.Errorf("%d bytes exceeds %d", info.Size(), maxSecretSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Apply fills unset proxy and user agent settings in cfg from secrets.
// Values already present in cfg win.
func Apply(secrets map[string]string, cfg *types.PipelineConfig) {
	if v := secrets[ProxyURL]; v != "" {
		if cfg.Retrieval.ProxyURL == "" {
			cfg.Retrieval.ProxyURL = v
		}
		if cfg.Browser.ProxyURL == "" {
			cfg.Browser.ProxyURL = v
		}
	}
	if v := secrets[PortalUserAgent]; v != "" && cfg.Browser.UserAgent == "" {
		cfg.Browser.UserAgent = v
	}
}
