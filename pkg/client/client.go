// Package client provides the PMS HTTP client with rate limiting,
// caching, retries and circuit breaking. Client implements
// pagination.Fetcher.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pms-client/pkg/cache"
	"github.com/Sternrassler/pms-client/pkg/pagination"
	"github.com/Sternrassler/pms-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Prometheus metrics for PMS client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pms_requests_total",
		Help: "Total PMS requests by path and status",
	}, []string{"path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pms_request_duration_seconds",
		Help:    "PMS fetch duration in seconds by path, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"path"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pms_errors_total",
		Help: "Total PMS errors by class",
	}, []string{"class"})
)

// DefaultMaxBodyBytes caps a single response body.
const DefaultMaxBodyBytes = 32 << 20

// Client is the PMS API client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	limiter     *rate.Limiter
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	breaker     *gobreaker.CircuitBreaker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for caching and rate limit state
	Redis *redis.Client

	// BaseURL of the PMS API, e.g. "https://acme.trackhs.com/api"
	BaseURL string

	// HTTP basic credentials
	Username string
	Password string

	// User-Agent header
	UserAgent string

	// Local token bucket
	RequestsPerSecond float64
	Burst             int

	// RequestTimeout bounds a single attempt
	RequestTimeout time.Duration

	// CacheTTL applies when a response carries no freshness headers
	CacheTTL time.Duration

	// MaxBodyBytes rejects larger responses with ErrResponseTooLarge
	MaxBodyBytes int64

	Retry     RetryConfig
	RateLimit ratelimit.Config
	Breaker   BreakerConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, baseURL, userAgent string) Config {
	return Config{
		Redis:             redis,
		BaseURL:           baseURL,
		UserAgent:         userAgent,
		RequestsPerSecond: 5,
		Burst:             5,
		RequestTimeout:    30 * time.Second,
		CacheTTL:          cache.DefaultTTL,
		MaxBodyBytes:      DefaultMaxBodyBytes,
		Retry:             DefaultRetryConfig(),
		RateLimit:         ratelimit.DefaultConfig(),
		Breaker:           DefaultBreakerConfig(),
	}
}

// New creates a new PMS client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests_per_second must be > 0 (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	logger := log.With().Str("component", "pms-client").Logger()

	return &Client{
		httpClient:  &http.Client{},
		baseURL:     baseURL,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger, cfg.RateLimit),
		cache:       cache.NewManager(cfg.Redis, cache.WithDefaultTTL(cfg.CacheTTL)),
		breaker:     newBreaker(cfg.Breaker, logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

var _ pagination.Fetcher = (*Client)(nil)

// Fetch performs a GET on path with query and returns the response body.
// Page requests are served from cache when fresh; scroll requests always
// go to the PMS because the server tracks their position.
func (c *Client) Fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	cacheable := !query.Has(pagination.QueryScroll)
	key := cache.Key{Path: path, Query: query, Account: c.config.Username}

	var stale *cache.Entry
	if cacheable {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().Str("path", path).Msg("Cache hit")
			requestsTotal.WithLabelValues(path, "cache").Inc()
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("path", path).Msg("Cache get error")
		}

		if s, err := c.cache.GetStale(ctx, key); err == nil {
			stale = s
		}
	}

	var body []byte
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := c.rateLimiter.Allow(ctx); err != nil {
			return err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.attempt(ctx, path, query, key, stale, cacheable)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				err = fmt.Errorf("%w: %v", ErrCircuitOpen, err)
			}
			errorsTotal.WithLabelValues(string(classify(err))).Inc()
			return err
		}
		body = result.([]byte)
		return nil
	})
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("PMS request failed")
		return nil, err
	}

	return body, nil
}

// attempt performs one HTTP round trip.
func (c *Client) attempt(ctx context.Context, path string, query url.Values, key cache.Key, stale *cache.Entry, cacheable bool) ([]byte, error) {
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}
	if cache.AddConditionalHeaders(req, stale) {
		c.logger.Debug().Str("path", path).Str("etag", stale.ETag).Msg("Making conditional request")
	}

	c.logger.Debug().
		Str("path", path).
		Str("query", query.Encode()).
		Msg("Executing PMS request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, fmt.Errorf("pms request %s: %w", path, err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	if resp.StatusCode == http.StatusNotModified && stale != nil {
		expires := cache.Expiry(resp.Header, c.cache.Now(), c.cache.DefaultTTL())
		if _, err := c.cache.Refresh(ctx, key, expires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		c.logger.Debug().Str("path", path).Msg("304 Not Modified - using cache")
		return stale.Data, nil
	}

	// One byte past the limit tells a full body from a cut one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	tooLarge := int64(len(body)) > c.config.MaxBodyBytes

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		c.logger.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("PMS request error")
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Path:       path,
			Message:    summarizeBody(body, resp.Status),
		}
	}

	if tooLarge {
		c.logger.Error().
			Str("path", path).
			Int64("max_body_bytes", c.config.MaxBodyBytes).
			Msg("PMS response exceeds body limit")
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrResponseTooLarge, path, c.config.MaxBodyBytes)
	}

	if cacheable {
		entry := cache.NewEntry(body, resp.StatusCode, resp.Header, c.cache.Now(), c.cache.DefaultTTL())
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return body, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

func summarizeBody(body []byte, status string) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return status
	}
	if len(msg) > 256 {
		msg = msg[:256] + "..."
	}
	return msg
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
