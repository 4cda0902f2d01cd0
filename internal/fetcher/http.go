package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chiffordable/chiffordable/internal/resilience"
)

// Options configures the HTTP client.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerSecond throttles outgoing requests. Zero or negative
	// disables throttling (used by tests).
	RequestsPerSecond float64
	Burst             int
	// RetryBackoff overrides the initial retry backoff. Zero keeps the
	// default.
	RetryBackoff time.Duration
	// Headers are sent on every request in addition to the User-Agent.
	Headers map[string]string
}

// Client fetches pages and JSON payloads with rate limiting and retry on
// transient failures. All methods honor the passed context.
type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "chiffordable/1.0"
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(limit, opts.Burst),
		opts:    opts,
	}
}

// Get fetches the URL and returns the response body. 429 and 5xx responses
// and network errors are retried with exponential backoff; other non-200
// statuses fail immediately.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = c.opts.MaxRetries
	if c.opts.RetryBackoff > 0 {
		cfg.InitialBackoff = c.opts.RetryBackoff
	}
	cfg.OnRetry = resilience.RetryLogger("fetcher", rawURL)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: build request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		for k, v := range c.opts.Headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetcher: get %s", rawURL), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			zap.L().Warn("fetcher: transient status",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
			)
			return nil, resilience.NewTransientError(
				eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetcher: read body %s", rawURL), 0)
		}
		return body, nil
	})
}

// GetJSON fetches the URL and unmarshals the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return eris.Wrapf(err, "fetcher: decode JSON from %s", rawURL)
	}
	return nil
}
