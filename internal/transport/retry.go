// Package transport provides the HTTP round tripper used for upstream
// metadata and media requests.
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config controls retry/backoff behavior for upstream HTTP requests.
type Config struct {
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	RetryStatusCodes []int
	// MaxRetryAfter caps a server supplied Retry-After (default 30s).
	MaxRetryAfter time.Duration
	// Headers are added to every request that does not already set them.
	Headers http.Header
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, req *http.Request, err error, statusCode int, wait time.Duration)
}

// Retry is an http.RoundTripper that retries transient failures.
type Retry struct {
	next http.RoundTripper
	cfg  Config
}

// New wraps next (http.DefaultTransport when nil).
func New(next http.RoundTripper, cfg Config) *Retry {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Retry{next: next, cfg: normalize(cfg)}
}

func normalize(cfg Config) Config {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 3 * time.Second
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = 30 * time.Second
	}
	if len(cfg.RetryStatusCodes) == 0 {
		cfg.RetryStatusCodes = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	return cfg
}

func (c Config) backoffFor(attempt int) time.Duration {
	backoff := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff > c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return backoff
}

// RoundTrip implements http.RoundTripper.
func (t *Retry) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		attemptReq, err := t.prepare(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := t.next.RoundTrip(attemptReq)
		if attempt >= t.cfg.MaxRetries || !t.retryable(ctx, req, resp, err) {
			return resp, err
		}

		wait := t.cfg.backoffFor(attempt)
		status := 0
		if resp != nil {
			status = resp.StatusCode
			if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > wait {
				wait = max(wait, min(ra, t.cfg.MaxRetryAfter))
			}
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}
		if t.cfg.OnRetry != nil {
			t.cfg.OnRetry(attempt+1, req, err, status, wait)
		}
		if err := waitBackoff(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (t *Retry) prepare(req *http.Request, attempt int) (*http.Request, error) {
	out := req.Clone(req.Context())
	for k, vals := range t.cfg.Headers {
		if out.Header.Get(k) != "" {
			continue
		}
		for _, v := range vals {
			out.Header.Add(k, v)
		}
	}
	if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	return out, nil
}

func (t *Retry) retryable(ctx context.Context, req *http.Request, resp *http.Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return slices.Contains(t.cfg.RetryStatusCodes, resp.StatusCode)
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		d := time.Until(when)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
