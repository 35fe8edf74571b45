// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying HTTP client and the per-source
// rate limiters shared across pipeline stages.
package httputil

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay is the lower backoff bound for retryable responses.
// Declared as a var so tests can shrink it to avoid real sleeps.
var (
	RetryBaseDelay = 2 * time.Second
	retryMaxDelay  = 60 * time.Second
)

const (
	defaultMaxRetries  = 5
	defaultTimeout     = 15 * time.Second
	maxRedirects       = 10
	defaultMaxIdle     = 32
	defaultIdlePerHost = 8
)

// Client wraps an http.Client with retry, redirect limiting and structured
// attempt logging. A single Client owns one pooled transport and is safe
// for concurrent use.
type Client struct {
	http       *http.Client
	maxRetries int
	userAgent  string
	log        *zap.Logger
}

// NewClient builds a Client with a pooled HTTP/2-capable transport.
// timeout zero selects the 15 s default; maxRetries zero selects 5.
func NewClient(timeout time.Duration, maxRetries int, userAgent string, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	transport := &http.Transport{
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        defaultMaxIdle,
		MaxIdleConnsPerHost: defaultIdlePerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		maxRetries: maxRetries,
		userAgent:  userAgent,
		log:        log,
	}
}

// retryable reports whether a status code warrants another attempt:
// 408, 429 and all 5xx.
func retryable(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

// backoffDelay computes the exponential delay for attempt (0-based) with
// jitter, clamped to [RetryBaseDelay, retryMaxDelay].
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	// Up to 25% jitter so synchronized callers spread out.
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	d += jitter
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	return d
}

// GetWithRetry issues a GET for url and retries on transport errors and on
// HTTP 408/429/5xx with exponential backoff. Other 4xx responses are
// returned to the caller for inspection, never treated as errors. The body
// of a retried response is closed before sleeping.
func (c *Client) GetWithRetry(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(attempt - 1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request for %s: %w", url, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		elapsed := time.Since(start)

		if err != nil {
			lastErr = err
			c.log.Warn("http_request_failed",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			continue
		}

		c.log.Debug("http_request",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed),
		)

		if !retryable(resp.StatusCode) || attempt == c.maxRetries {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}
