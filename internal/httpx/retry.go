// Package httpx opens server-sent event streams over HTTP with bounded
// retries for the attempts that happen before any event is read.
package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMinBackoff = 250 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// RetryPolicy bounds reconnect attempts. The zero value sends exactly once.
type RetryPolicy struct {
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	p.MaxRetries = max(p.MaxRetries, 0)
	if p.MinBackoff <= 0 {
		p.MinBackoff = defaultMinBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	p.MaxBackoff = max(p.MaxBackoff, p.MinBackoff)
	return p
}

// StreamRequest is a JSON POST whose response is read as text/event-stream.
type StreamRequest struct {
	URL  string
	Body []byte

	// Bearer, when set, is sent as "Authorization: Bearer <token>".
	Bearer string

	// Headers are applied last and may override any default.
	Headers map[string]string
}

func (r StreamRequest) build(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if r.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.Bearer)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// OpenStream sends r until the server answers with a status that is not
// worth retrying, or the policy is spent. Once a response is returned its
// body belongs to the caller and nothing is retried. A non-2xx response is
// returned as-is so the caller can decode the error body.
func OpenStream(ctx context.Context, client *http.Client, r StreamRequest, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	policy = policy.withDefaults()

	for attempt := 0; ; attempt++ {
		req, err := r.build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		last := attempt == policy.MaxRetries

		wait, retry := retryDelay(resp, err)
		switch {
		case err != nil && (last || !retry):
			return nil, err
		case err == nil && (last || !retry):
			return resp, nil
		case err == nil:
			drain(resp)
		}

		backoff := jitter(attempt, policy)
		if wait < backoff {
			wait = backoff
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// retryDelay reports whether the outcome of one attempt is retryable and the
// minimum delay the server asked for.
func retryDelay(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, IsRetryableNetErr(err)
	}
	if !ShouldRetry(resp.StatusCode) {
		return 0, false
	}
	d, _ := retryAfter(resp.Header.Get("Retry-After"))
	return d, true
}

// ShouldRetry reports whether a response with this status may succeed if
// the request is sent again.
func ShouldRetry(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return status >= 500 && status <= 599
}

// IsRetryableNetErr is true for transport timeouts that were not caused by
// the caller's own context.
func IsRetryableNetErr(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter returns a uniform delay in [0, min(MaxBackoff, MinBackoff<<attempt)].
func jitter(attempt int, p RetryPolicy) time.Duration {
	ceiling := p.MinBackoff
	for range attempt {
		if ceiling >= p.MaxBackoff/2 {
			ceiling = p.MaxBackoff
			break
		}
		ceiling *= 2
	}
	return rand.N(min(ceiling, p.MaxBackoff) + 1)
}

// retryAfter parses a Retry-After header in either delta-seconds or
// HTTP-date form.
func retryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	return max(time.Until(t), 0), true
}
