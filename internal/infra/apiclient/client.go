// Package apiclient is the single client for the remote lending API.
// Every failure, whether transport, status or decode, is reported as
// domain.ErrRequestFailed.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agrocredit/agrolend/internal/domain"
	"github.com/agrocredit/agrolend/internal/infra/observability"
)

// Client issues JSON requests against a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     *zap.Logger
	timeout    *time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader adds a statically configured header, e.g. an API key.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds every request. Zero means no timeout beyond the caller's
// context. A client passed through WithHTTPClient is copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = &d }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		headers:    make(map[string]string),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout != nil {
		hc := *c.httpClient
		hc.Timeout = *c.timeout
		c.httpClient = &hc
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends method to path with body encoded as JSON (when non-nil) and decodes
// the response into out (when non-nil). op names the call for metrics and logs.
func (c *Client) Do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		observability.ObserveUpstream(op, start, err)
		if err != nil {
			c.logger.Warn("upstream request failed",
				zap.String("op", op),
				zap.String("method", method),
				zap.String("path", path),
				zap.Error(err))
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("%w: encode %s: %v", domain.ErrRequestFailed, op, mErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build %s: %v", domain.ErrRequestFailed, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("%w: %s %s: status %d", domain.ErrRequestFailed, method, path, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrRequestFailed, op, err)
	}
	return nil
}

// Ping issues a GET against path and discards the body.
func (c *Client) Ping(ctx context.Context, path string) error {
	return c.Do(ctx, "probe", http.MethodGet, path, nil, nil)
}
