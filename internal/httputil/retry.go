// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP client and throttling helpers used to
// fetch judgment documents.
package httputil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay is the first backoff when the server gives no Retry-After.
// Tests override it to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

// MaxRetryDelay caps any single wait, including one asked for by the server.
var MaxRetryDelay = 2 * time.Minute

const defaultMaxRetries = 5

// DoWithRetry executes req and retries while the server is throttling:
// HTTP 429, or 503 carrying a Retry-After header. The wait is the
// server's Retry-After when present, otherwise RetryBaseDelay doubled per
// attempt, never more than MaxRetryDelay.
//
// When maxRetries is 0 the default (5) is used. A throttled body is drained
// and closed before waiting. Cancellation during a wait returns ctx.Err().
// After the last retry the throttled response is returned for the caller
// to inspect.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if !throttled(resp) || attempt >= maxRetries {
			return resp, nil
		}

		wait := backoff(resp.Header.Get("Retry-After"), attempt, time.Now())
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		slog.Debug("throttled",
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"wait", wait,
			"attempt", attempt+1,
			"max", maxRetries,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func throttled(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusServiceUnavailable:
		return resp.Header.Get("Retry-After") != ""
	}
	return false
}

// backoff returns the wait before retry number attempt+1. retryAfter is
// either delta-seconds or an HTTP date.
func backoff(retryAfter string, attempt int, now time.Time) time.Duration {
	wait := RetryBaseDelay << attempt
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(retryAfter); err == nil {
		wait = max(at.Sub(now), 0)
	}
	if wait > MaxRetryDelay || wait < 0 {
		wait = MaxRetryDelay
	}
	return wait
}
