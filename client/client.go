// Package client provides an HTTP client with retry logic for conda channel
// servers, together with the URL layout of a channel.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
)

const defaultUserAgent = "condamirror"

// Client is an HTTP client for channel metadata endpoints. Responses with
// status 429 or 5xx are retried with exponential backoff; everything else is
// surfaced immediately.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxRetries uint64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  defaultUserAgent,
		maxRetries: 5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return NewClient()
}

// WithUserAgent returns a copy of the client with a different User-Agent.
func (c *Client) WithUserAgent(ua string) *Client {
	copied := *c
	copied.userAgent = ua
	return &copied
}

// GetJSON fetches a URL and decodes the JSON response into v. Numbers are
// decoded as json.Number so metadata fields survive re-serialization
// unchanged.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// GetBody fetches a URL and returns the raw response body.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// Head checks that a URL exists without downloading it.
func (c *Client) Head(ctx context.Context, url string) error {
	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		switch {
		case r.StatusCode == http.StatusOK:
			resp = r
			return nil
		case r.StatusCode == http.StatusNotFound:
			drain(r)
			return backoff.Permanent(fmt.Errorf("%s: %w", url, ErrNotFound))
		case r.StatusCode == http.StatusTooManyRequests:
			retryAfter, _ := strconv.Atoi(r.Header.Get("Retry-After"))
			drain(r)
			return &RateLimitError{RetryAfter: retryAfter}
		case r.StatusCode >= 500:
			return httpError(r)
		default:
			return backoff.Permanent(httpError(r))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

func httpError(r *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
	_ = r.Body.Close()
	return &HTTPError{
		StatusCode: r.StatusCode,
		URL:        r.Request.URL.String(),
		Body:       string(body),
	}
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 1024))
	_ = r.Body.Close()
}
