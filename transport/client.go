package transport

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const defaultClientTimeout = 30 * time.Second

// Client owns a fully composed HTTP client with exactly one interceptor
// installed. It replaces the older pattern of ejecting and re-registering
// interceptor hooks: the chain is built once, at composition time, and there
// is no way to stack a second copy.
type Client struct {
	httpClient *http.Client
	transport  *Transport
}

// ClientOption modifies a Client under construction.
type ClientOption struct {
	apply func(*clientConfig)
}

type clientConfig struct {
	base    http.RoundTripper
	timeout time.Duration
	tOpts   []TransportOption
}

// WithClientBase sets the RoundTripper beneath the interceptor.
func WithClientBase(base http.RoundTripper) ClientOption {
	return ClientOption{func(c *clientConfig) { c.base = base }}
}

// WithClientTimeout sets the overall request timeout.
func WithClientTimeout(d time.Duration) ClientOption {
	return ClientOption{func(c *clientConfig) { c.timeout = d }}
}

// WithClientRetryMode selects the refresh-attempt ceiling scope.
func WithClientRetryMode(mode RetryMode) ClientOption {
	return ClientOption{func(c *clientConfig) { c.tOpts = append(c.tOpts, WithRetryMode(mode)) }}
}

// NewClient composes the interceptor chain over session.
func NewClient(session SessionController, options ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		base:    http.DefaultTransport,
		timeout: defaultClientTimeout,
	}
	for _, opt := range options {
		opt.apply(cfg)
	}

	t, err := NewTransport(session, append([]TransportOption{WithBase(cfg.base)}, cfg.tOpts...)...)
	if err != nil {
		return nil, errors.Wrap(err, "[transport.NewClient] compose chain")
	}

	return &Client{
		httpClient: &http.Client{Transport: t, Timeout: cfg.timeout},
		transport:  t,
	}, nil
}

// Do sends a request through the interceptor chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// HTTPClient exposes the composed *http.Client for code that wants to hand it
// to other libraries. The transport must not be replaced.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
