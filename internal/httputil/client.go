// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/judgment-engine/pkg/types"
)

// NewClient returns an HTTP client honoring cfg's timeout and proxy. An
// empty ProxyURL falls back to the environment proxy settings.
func NewClient(cfg types.HTTPConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil || proxy.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q", cfg.ProxyURL)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{Timeout: cfg.Timeout, Transport: transport}, nil
}
