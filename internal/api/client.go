// Package api is the HTTP transport to the inventory backend.
//
// Every request made through a Client passes through AuthTransport, which
// attaches the stored credential and tears the session down on a 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/metrics"
)

// Defaults used when configuration leaves a value unset.
const (
	DefaultBaseURL   = "http://localhost:3000/api"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "stockbook"
)

// Header names set on every request.
const (
	HeaderRequestID = "X-Request-ID"
	contentTypeJSON = "application/json"
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Response is a completed backend response with a fully read body.
type Response struct {
	Data    []byte
	Status  int
	Headers http.Header
}

// Client is the shared backend client.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	logger  *log.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger       *log.Logger
	metrics      *metrics.Metrics
	onInvalid    InvalidationHandler
	roundTripper http.RoundTripper
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithMetrics records request and invalidation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithInvalidationHandler receives an Invalidated event after every 401.
func WithInvalidationHandler(h InvalidationHandler) Option {
	return func(o *clientOptions) { o.onInvalid = h }
}

// WithRoundTripper replaces the network transport beneath the auth layer.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.roundTripper = rt }
}

// NewClient builds a Client whose requests all go through an AuthTransport
// over store.
func NewClient(cfg Config, store CredentialStore, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrDefault(o.logger).WithComponent("api")

	transport := &AuthTransport{
		Base:          o.roundTripper,
		Store:         store,
		OnInvalidated: o.onInvalid,
		Logger:        logger,
		Metrics:       o.metrics,
	}

	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger:  logger,
		metrics: o.metrics,
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// Get issues a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, params, nil)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, nil, body)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do performs one request. Network failures come back as the underlying
// error; a non-2xx status comes back as *StatusError carrying the response.
// Pass the result through Normalize for the uniform error shape.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values, body any) (*Response, error) {
	target, err := c.resolve(path, params)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, 0, time.Since(start))
		c.logger.DebugContext(ctx, "request failed", "method", method, "url", target, "request_id", requestID, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.DebugContext(ctx, "request completed",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	out := &Response{Data: data, Status: resp.StatusCode, Headers: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &StatusError{Method: method, URL: target, Response: out}
	}
	return out, nil
}

// resolve joins a relative path onto the base URL. Absolute http(s) URLs
// are used as given.
func (c *Client) resolve(path string, params url.Values) (string, error) {
	var u *url.URL
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		parsed, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("invalid request URL %q: %w", path, err)
		}
		u = parsed
	} else {
		rel, err := url.Parse(strings.TrimLeft(path, "/"))
		if err != nil {
			return "", fmt.Errorf("invalid request path %q: %w", path, err)
		}
		u = c.base.JoinPath(rel.Path)
		u.RawQuery = rel.RawQuery
	}

	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
