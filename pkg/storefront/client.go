// Package storefront is the HTTP client for the storefront REST backend.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/metrics"
)

const (
	defaultTimeout          = 15 * time.Second
	defaultUserAgent        = "storefront-bff"
	errorBodyReadLimit      = 4096
	responseBodyReadLimit   = 4 << 20
	headerIdempotencyKey    = "Idempotency-Key"
	headerAuthorization     = "Authorization"
	contentTypeJSON         = "application/json"
	bearerPrefix            = "Bearer "
	genericOperationFailure = "request failed"
)

var errBaseURLRequired = errors.New("storefront api base url is required")

// TokenSource yields the bearer token of the current visitor, if any.
type TokenSource interface {
	Token(ctx context.Context) (string, bool, error)
}

// Client calls the storefront REST API. A Client is safe for concurrent use;
// WithTokens derives a per-visitor copy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	tokens     TokenSource
	metrics    *metrics.UpstreamMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(agent); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

// WithMetrics records per-operation latency and status classes.
func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parsing storefront api base url: %w", err)
	}

	client := &Client{
		baseURL:    trimmed,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client, nil
}

// WithTokens returns a copy that authenticates with src and keeps its own
// cookie jar, so cookie credentials never leak between visitors.
func (c *Client) WithTokens(src TokenSource) *Client {
	clone := *c
	httpClient := *c.httpClient
	if jar, err := cookiejar.New(nil); err == nil {
		httpClient.Jar = jar
	}
	clone.httpClient = &httpClient
	clone.tokens = src
	return &clone
}

type requestOptions struct {
	query   url.Values
	headers map[string]string
}

type requestOption func(*requestOptions)

func withQuery(values url.Values) requestOption {
	return func(o *requestOptions) {
		o.query = values
	}
}

func withIdempotencyKey(key string) requestOption {
	return func(o *requestOptions) {
		if strings.TrimSpace(key) == "" {
			return
		}
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[headerIdempotencyKey] = key
	}
}

// do performs one JSON round trip. out may be nil; otherwise the raw body is
// stored into it when it is a *json.RawMessage, or decoded into it.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any, opts ...requestOption) error {
	var options requestOptions
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()
	status := 0
	defer func() {
		c.metrics.Observe(op, status, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("marshal %s request", op))
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.buildURL(path)
	if len(options.query) > 0 {
		endpoint += "?" + options.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", op))
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	for key, value := range options.headers {
		req.Header.Set(key, value)
	}
	if c.tokens != nil {
		token, ok, err := c.tokens.Token(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load bearer token")
		}
		if ok {
			req.Header.Set(headerAuthorization, bearerPrefix+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", op, genericOperationFailure))
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read %s response", op))
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", op))
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}
