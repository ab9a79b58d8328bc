package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/nao1215/mdimg/internal/config"
)

// Client wraps http.Client with the request shaping mdimg needs:
// a cookie jar, a User-Agent, per-host headers from the configuration
// file, and a per-host rate limiter as a politeness setting.
type Client struct {
	// httpClient is the underlying HTTP client with timeout and jar.
	httpClient *http.Client

	// userAgent is sent with every request.
	userAgent string

	// hosts holds per-host request settings (referer, cookie, headers).
	hosts *config.File

	// delay is the default minimum interval between requests per host.
	delay time.Duration

	// limiters maps hostnames to their rate limiters.
	limiters map[string]*rate.Limiter

	// mu protects limiters.
	mu sync.Mutex

	// logger for structured logging.
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHosts sets per-host request settings from the config file.
func WithHosts(hosts *config.File) ClientOption {
	return func(c *Client) {
		c.hosts = hosts
	}
}

// WithDelay sets the default minimum interval between requests to the
// same host. Zero disables rate limiting.
func WithDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.delay = d
	}
}

// WithClientLogger sets a custom logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client with the given request timeout.
// The cookie jar uses the public suffix list so cookies set by image
// hosts during redirects are scoped correctly.
func NewClient(timeout time.Duration, opts ...ClientOption) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		userAgent: config.DefaultUserAgent,
		delay:     config.DefaultDelay,
		limiters:  make(map[string]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c, nil
}

// Get issues a GET request for the given URL after waiting on the
// host's rate limiter. The response body is open on return; callers
// must close it. Non-200 responses are drained, closed, and returned
// as *HTTPError.
func (c *Client) Get(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, reqURL)
	if err != nil {
		return nil, err
	}

	if err := c.wait(ctx, req.URL.Hostname()); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", reqURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	return resp, nil
}

// ContentLength issues a HEAD request and returns the advertised
// Content-Length. Returns -1 when the server does not support HEAD or
// does not advertise a length; HEAD failures are never fatal because
// the subsequent GET decides the outcome.
func (c *Client) ContentLength(ctx context.Context, reqURL string) int64 {
	req, err := c.newRequest(ctx, http.MethodHead, reqURL)
	if err != nil {
		return -1
	}

	if err := c.wait(ctx, req.URL.Hostname()); err != nil {
		return -1
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return -1
	}

	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return -1
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// newRequest builds a request with the User-Agent and any per-host
// settings configured for the target hostname.
func (c *Client) newRequest(ctx context.Context, method, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request for %s: %w", method, reqURL, err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/*;q=0.8,*/*;q=0.5")

	host := c.hosts.GetHostConfig(req.URL.Hostname())
	if host.Referer != "" {
		req.Header.Set("Referer", host.Referer)
	}
	if host.Cookie != "" {
		req.Header.Set("Cookie", host.Cookie)
	}
	for k, v := range host.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// wait blocks until the host's rate limiter allows the next request.
func (c *Client) wait(ctx context.Context, host string) error {
	limiter := c.limiterFor(host)
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", host, err)
	}
	return nil
}

// limiterFor returns the rate limiter for a hostname, creating it on
// first use. A host-specific delayMillis from the config file overrides
// the global delay. Returns nil when rate limiting is disabled.
func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, ok := c.limiters[host]; ok {
		return limiter
	}

	interval := c.delay
	if hc := c.hosts.GetHostConfig(host); hc.DelayMillis > 0 {
		interval = time.Duration(hc.DelayMillis) * time.Millisecond
	}
	if interval <= 0 {
		c.limiters[host] = nil
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	c.limiters[host] = limiter
	return limiter
}
