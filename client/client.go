// Package client provides the HTTP client used to talk to registry APIs.
//
// Reads are retried with exponential backoff on rate limiting, 5xx responses
// and transport failures. Writes are sent exactly once. Every failed call is
// returned as a *HTTPError or *TransportError carrying a Kind so callers can
// match outcomes without inspecting messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
)

const (
	defaultUserAgent  = "regcopy"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 5
	defaultBaseDelay  = 500 * time.Millisecond
	maxErrorBody      = 1024
)

// AuthFunc returns the header to attach to a request for url.
// Returning empty strings sends the request unauthenticated.
type AuthFunc func(url string) (headerName, headerValue string)

// RateLimiter controls request pacing.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Client is an HTTP client with retry logic for registry APIs.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	auth       AuthFunc
	limiter    RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries for reads.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseDelay sets the initial backoff interval.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithAuth sets the function used to authenticate each request.
func WithAuth(fn AuthFunc) Option {
	return func(c *Client) {
		c.auth = fn
	}
}

// WithRateLimiter paces requests through l.
func WithRateLimiter(l RateLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff for reads
// - Retry on 429, 5xx and transport failures
func DefaultClient() *Client {
	return NewClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithUserAgent returns a copy of the client using ua.
func (c *Client) WithUserAgent(ua string) *Client {
	cp := *c
	cp.userAgent = ua
	return &cp
}

// WithAuth returns a copy of the client authenticating through fn.
func (c *Client) WithAuth(fn AuthFunc) *Client {
	cp := *c
	cp.auth = fn
	return &cp
}

// GetBody fetches url and returns the response body.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.retry(ctx, func() error {
		b, err := c.do(ctx, http.MethodGet, url, nil, "")
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

// GetJSON fetches url and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// PutJSON sends payload to url as JSON. The request is never retried.
// If v is non-nil the response body is decoded into it.
func (c *Client) PutJSON(ctx context.Context, url string, payload any, v any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	body, err := c.do(ctx, http.MethodPut, url, data, "application/json")
	if err != nil {
		return err
	}
	if v == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

func (c *Client) retry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	var result error
	op := func() error {
		err := fn()
		if err != nil && retryable(err) {
			return err
		}
		result = err
		return nil
	}

	// WithMaxRetries treats zero as unlimited, so no retries needs an
	// explicit stop policy.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.maxRetries > 0 {
		policy = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}
	policy = backoff.WithContext(policy, ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return err
	}
	return result
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, contentType string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.auth != nil {
		if name, value := c.auth(url); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{URL: url, Err: err}
		}
		return body, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	httpErr := &HTTPError{
		StatusCode: resp.StatusCode,
		URL:        url,
		Body:       string(bytes.TrimSpace(body)),
		Kind:       KindForStatus(resp.StatusCode),
	}
	if httpErr.Kind == KindRateLimited {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			return nil, fmt.Errorf("%w: %w", httpErr, &RateLimitError{RetryAfter: secs})
		}
	}
	return nil, httpErr
}
