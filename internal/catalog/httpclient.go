package catalog

import (
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds every catalog request.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the request ceiling in requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the token bucket burst.
	DefaultBurstSize = 1

	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "collab-graph-service/1.0"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the upper bound on one request, including reading the body.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// HTTPClient wraps http.Client with a request ceiling and a fixed timeout.
// Requests are attempted exactly once; failures are returned to the caller.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do waits for the rate limiter, sets the User-Agent header and executes the
// request once. Non-2xx responses are returned as-is; callers decide what a
// status code means.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Timeout returns the configured per-request timeout.
func (c *HTTPClient) Timeout() time.Duration {
	return c.config.Timeout
}
