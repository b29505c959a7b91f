package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/pms-client/internal/testutil"
	"github.com/Sternrassler/pms-client/pkg/cache"
	"github.com/Sternrassler/pms-client/pkg/pagination"
	"github.com/Sternrassler/pms-client/pkg/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func testConfig(t *testing.T, baseURL string) Config {
	t.Helper()

	cfg := DefaultConfig(setupTestRedis(t), baseURL, "pms-client-test/1.0")
	cfg.Username = "acme"
	cfg.Password = "secret"
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	cfg.RequestTimeout = 2 * time.Second
	cfg.Retry = RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
	return cfg
}

func newTestClient(t *testing.T, mock *testutil.MockPMS) *Client {
	t.Helper()

	c, err := New(testConfig(t, mock.URL()))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newMock(t *testing.T) *testutil.MockPMS {
	t.Helper()

	mock := testutil.NewMockPMS()
	t.Cleanup(mock.Close)
	mock.AddCollection(testutil.Collection{
		Path:        "/pms/units",
		EmbeddedKey: "units",
		Items:       testutil.Units(25),
	})
	mock.AddCollection(testutil.Collection{
		Path:        "/pms/reservations",
		ScrollPath:  "/v2/pms/reservations",
		EmbeddedKey: "reservations",
		Items:       testutil.Reservations(12),
	})
	return mock
}

func pageQuery(page int) url.Values {
	q := url.Values{}
	q.Set(pagination.QueryPage, strconv.Itoa(page))
	q.Set(pagination.QuerySize, "10")
	return q
}

func TestNew_Validation(t *testing.T) {
	rdb := setupTestRedis(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing redis", mutate: func(c *Config) { c.Redis = nil }},
		{name: "missing base url", mutate: func(c *Config) { c.BaseURL = "" }},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "/api" }},
		{name: "missing user agent", mutate: func(c *Config) { c.UserAgent = "" }},
		{name: "zero rate", mutate: func(c *Config) { c.RequestsPerSecond = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(rdb, "https://acme.example.com/api", "test/1.0")
			tt.mutate(&cfg)

			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	_, err := New(DefaultConfig(rdb, "https://acme.example.com/api/", "test/1.0"))
	assert.NoError(t, err)
}

func TestClient_Fetch(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)

	body, err := c.Fetch(context.Background(), "/pms/units", pageQuery(2))
	require.NoError(t, err)

	assert.Equal(t, int64(2), gjson.GetBytes(body, "page").Int())
	assert.Equal(t, int64(10), gjson.GetBytes(body, "_embedded.units.#").Int())
	assert.Equal(t, "Unit 11", gjson.GetBytes(body, "_embedded.units.0.name").String())

	h := mock.LastHeader()
	assert.Equal(t, "pms-client-test/1.0", h.Get("User-Agent"))
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.NotEmpty(t, h.Get("X-Request-ID"))
	assert.NotEmpty(t, h.Get("Authorization"))
}

func TestClient_Fetch_CacheHit(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)
	ctx := context.Background()

	first, err := c.Fetch(ctx, "/pms/units", pageQuery(1))
	require.NoError(t, err)

	second, err := c.Fetch(ctx, "/pms/units", pageQuery(1))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.RequestCount())

	// Different page is a different key.
	_, err = c.Fetch(ctx, "/pms/units", pageQuery(2))
	require.NoError(t, err)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestClient_Fetch_ScrollNotCached(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)
	ctx := context.Background()

	q := url.Values{}
	q.Set(pagination.QueryScroll, "1")
	q.Set(pagination.QuerySize, "5")

	for range 2 {
		body, err := c.Fetch(ctx, "/v2/pms/reservations", q)
		require.NoError(t, err)
		assert.NotEmpty(t, gjson.GetBytes(body, "_scroll").String())
	}

	assert.Equal(t, 2, mock.RequestCount())
}

func TestClient_Fetch_NotModified(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.cache = cache.NewManager(c.config.Redis, cache.WithClock(func() time.Time { return now }))

	first, err := c.Fetch(ctx, "/pms/units", pageQuery(1))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	second, err := c.Fetch(ctx, "/pms/units", pageQuery(1))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, mock.RequestCount())
	assert.Equal(t, 1, mock.ConditionalCount())

	// Refreshed entry is fresh again.
	_, err = c.Fetch(ctx, "/pms/units", pageQuery(1))
	require.NoError(t, err)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestClient_Fetch_RetriesServerErrors(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)

	mock.FailNext("/pms/units", http.StatusServiceUnavailable, http.StatusBadGateway)

	body, err := c.Fetch(context.Background(), "/pms/units", pageQuery(1))
	require.NoError(t, err)
	assert.Equal(t, int64(25), gjson.GetBytes(body, "total_items").Int())
	assert.Equal(t, 3, mock.RequestCount())
}

func TestClient_Fetch_RetryExhausted(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)

	mock.FailNext("/pms/units", 500, 500, 500, 500)

	_, err := c.Fetch(context.Background(), "/pms/units", pageQuery(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrorClassServer, apiErr.ErrorClass)
	assert.Equal(t, 3, mock.RequestCount())
}

func TestClient_Fetch_ClientErrorNotRetried(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)

	_, err := c.Fetch(context.Background(), "/pms/nowhere", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, ErrorClassClient, apiErr.ErrorClass)
	assert.Equal(t, "/pms/nowhere", apiErr.Path)
	assert.Contains(t, apiErr.Message, "not found")
	assert.False(t, errors.Is(err, ErrRetryExhausted))
	assert.Equal(t, 1, mock.RequestCount())
}

func TestClient_Fetch_CircuitOpen(t *testing.T) {
	mock := newMock(t)
	cfg := testConfig(t, mock.URL())
	cfg.Retry.MaxRetries = 0
	cfg.Breaker = BreakerConfig{
		Name:             "pms-api-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}
	c, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	mock.FailNext("/pms/units", 500, 500)
	for page := 1; page <= 2; page++ {
		_, err := c.Fetch(ctx, "/pms/units", pageQuery(page))
		require.Error(t, err)
	}

	_, err = c.Fetch(ctx, "/pms/units", pageQuery(3))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestClient_Fetch_ClientErrorsKeepCircuitClosed(t *testing.T) {
	mock := newMock(t)
	cfg := testConfig(t, mock.URL())
	cfg.Breaker.MinRequests = 2
	cfg.Breaker.FailureThreshold = 0.5
	c, err := New(cfg)
	require.NoError(t, err)

	for range 4 {
		_, err := c.Fetch(context.Background(), "/pms/nowhere", nil)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, 4, mock.RequestCount())
}

func TestClient_Fetch_QuotaExhausted(t *testing.T) {
	mock := newMock(t)
	mock.RateLimitRemaining = 0

	cfg := testConfig(t, mock.URL())
	cfg.RateLimit.MaxWait = 10 * time.Millisecond
	c, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	// Nothing is known before the first response.
	_, err = c.Fetch(ctx, "/pms/units", pageQuery(1))
	require.NoError(t, err)

	_, err = c.Fetch(ctx, "/pms/units", pageQuery(2))
	assert.ErrorIs(t, err, ratelimit.ErrQuotaExhausted)
	assert.Equal(t, 1, mock.RequestCount())
}

func TestClient_Fetch_ContextCancelled(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "/pms/units", pageQuery(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mock.RequestCount())
}

func TestClient_DrivesPaginationEngine(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)

	type unit struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	engine, err := pagination.NewEngine[unit](c, pagination.DefaultConfig())
	require.NoError(t, err)

	units, err := engine.CollectAll(context.Background(), pagination.Request{
		Path:      "/pms/units",
		Size:      10,
		ItemsPath: "_embedded.units",
	})
	require.NoError(t, err)

	require.Len(t, units, 25)
	assert.Equal(t, unit{ID: 25, Name: "Unit 25"}, units[24])
	assert.Equal(t, 3, mock.RequestCount())
}

func TestClient_Fetch_ResponseTooLarge(t *testing.T) {
	mock := newMock(t)
	cfg := testConfig(t, mock.URL())
	cfg.MaxBodyBytes = 256
	c, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Fetch(ctx, "/pms/units", pageQuery(1))
	assert.ErrorIs(t, err, ErrResponseTooLarge)
	assert.NotErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 1, mock.RequestCount())

	// Nothing partial is cached.
	_, err = c.GetCache().GetStale(ctx, cache.Key{Path: "/pms/units", Query: pageQuery(1), Account: cfg.Username})
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestClient_Fetch_ResponseTooLargeFailsCollect(t *testing.T) {
	mock := newMock(t)
	cfg := testConfig(t, mock.URL())
	cfg.MaxBodyBytes = 256
	c, err := New(cfg)
	require.NoError(t, err)

	engine, err := pagination.NewEngine[map[string]any](c, pagination.DefaultConfig())
	require.NoError(t, err)

	items, err := engine.CollectAll(context.Background(), pagination.Request{
		Path:      "/pms/units",
		Size:      10,
		ItemsPath: "_embedded.units",
	})
	assert.ErrorIs(t, err, ErrResponseTooLarge)
	assert.Nil(t, items)
}

func TestNew_DefaultsMaxBodyBytes(t *testing.T) {
	cfg := testConfig(t, "https://acme.example.com/api")
	cfg.MaxBodyBytes = 0

	c, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMaxBodyBytes), c.config.MaxBodyBytes)
}

type countingTransport struct {
	calls int
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls++
	return http.DefaultTransport.RoundTrip(req)
}

func TestClient_SetHTTPClient(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock)

	transport := &countingTransport{}
	c.SetHTTPClient(&http.Client{Transport: transport})

	_, err := c.Fetch(context.Background(), "/pms/units", pageQuery(1))
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls)
}
