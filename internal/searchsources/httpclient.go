package searchsources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/research-agent-service/internal/observability"
)

// DefaultUserAgent is sent when HTTPClientConfig.UserAgent is empty.
const DefaultUserAgent = "research-agent-service/1.0"

// HTTPClientConfig configures one backend's HTTP client. Zero values get
// conservative defaults: 15s timeout, 1 request per second, no retries.
type HTTPClientConfig struct {
	// Backend labels metrics, e.g. "wikipedia".
	Backend   string
	Timeout   time.Duration
	RateLimit float64
	BurstSize int
	// MaxRetries counts extra attempts after a 429, a 5xx or a network
	// error. With zero, an error status is handed back to the caller.
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string

	// APIKey is sent in APIKeyHeader when both are set.
	APIKey       string
	APIKeyHeader string

	Metrics *observability.Metrics
}

func (cfg *HTTPClientConfig) applyDefaults() {
	setDefault(&cfg.Timeout, 15*time.Second)
	setDefault(&cfg.RateLimit, 1)
	setDefault(&cfg.BurstSize, 1)
	setDefault(&cfg.RetryDelay, time.Second)
	setDefault(&cfg.UserAgent, DefaultUserAgent)
	setDefault(&cfg.Backend, "unknown")
	cfg.MaxRetries = max(cfg.MaxRetries, 0)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// HTTPClient is shared by every request a search backend makes. It paces
// requests through a RateLimiter and is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	cfg.applyDefaults()
	return &HTTPClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// retry describes an attempt that may be repeated. resp is set for an
// error status and nil for a network failure.
type retry struct {
	resp *http.Response
	wait time.Duration
	err  error
}

// Do sends req, waiting for the rate limiter before every attempt. A
// Retry-After header on a 429 overrides RetryDelay. Requests with a body
// are replayed only when GetBody is set.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}
	endpoint := req.URL.Path
	if endpoint == "" {
		endpoint = "/"
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		resp, r, err := c.try(req, endpoint)
		if r == nil {
			return resp, err
		}
		last := attempt == c.config.MaxRetries
		switch {
		case r.resp == nil && last:
			return nil, r.err
		case r.resp != nil && c.config.MaxRetries == 0:
			return r.resp, nil
		case r.resp != nil:
			drain(r.resp)
			if last {
				return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d", attempt+1, r.resp.StatusCode)
			}
		}

		if err := sleepCtx(ctx, r.wait); err != nil {
			return nil, err
		}
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
			req.Body = body
		}
	}
}

// try makes one attempt. A non-nil retry means the outcome may be
// repeated.
func (c *HTTPClient) try(req *http.Request, endpoint string) (*http.Response, *retry, error) {
	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.recordFailure(endpoint, "canceled")
			return nil, nil, err
		}
		c.recordFailure(endpoint, "network")
		return nil, &retry{wait: c.config.RetryDelay, err: fmt.Errorf("request failed: %w", err)}, nil
	}
	if m := c.config.Metrics; m != nil {
		m.RecordBackendRequest(c.config.Backend, endpoint, time.Since(start).Seconds())
	}
	if !retryableStatus(resp.StatusCode) {
		return resp, nil, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests && c.config.Metrics != nil {
		c.config.Metrics.RecordBackendRateLimited(c.config.Backend)
	}
	c.recordFailure(endpoint, "status_"+strconv.Itoa(resp.StatusCode))
	return nil, &retry{resp: resp, wait: c.retryAfter(resp.Header.Get("Retry-After"))}, nil
}

func (c *HTTPClient) recordFailure(endpoint, errType string) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordBackendRequestFailed(c.config.Backend, endpoint, errType)
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP
// date. Missing, invalid or past values yield RetryDelay.
func (c *HTTPClient) retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return c.config.RetryDelay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
