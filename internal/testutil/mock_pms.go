// Package testutil provides testing utilities for the PMS client.
package testutil

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a fixed response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Collection is a paged collection served by MockPMS.
type Collection struct {
	// Path serves standard page/size requests
	Path string

	// ScrollPath serves scroll requests, empty to disable
	ScrollPath string

	// EmbeddedKey names the array under "_embedded"
	EmbeddedKey string

	Items []any
}

// MockPMS is a configurable mock PMS server for testing.
type MockPMS struct {
	server *httptest.Server

	mu          sync.RWMutex
	handlers    map[string]http.HandlerFunc
	collections map[string]*Collection
	scrolls     map[string]*Collection
	failures    map[string][]int
	requests    map[string][]url.Values

	requestCount     int
	conditionalCount int
	lastHeader       http.Header

	// RateLimitRemaining is sent as X-RateLimit-Remaining
	RateLimitRemaining int
}

// NewMockPMS creates and starts a mock PMS server.
func NewMockPMS() *MockPMS {
	m := &MockPMS{
		handlers:           make(map[string]http.HandlerFunc),
		collections:        make(map[string]*Collection),
		scrolls:            make(map[string]*Collection),
		failures:           make(map[string][]int),
		requests:           make(map[string][]url.Values),
		RateLimitRemaining: 100,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the mock server URL.
func (m *MockPMS) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPMS) Close() {
	m.server.Close()
}

// AddCollection registers a collection.
func (m *MockPMS) AddCollection(c Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.Path] = &c
	if c.ScrollPath != "" {
		m.scrolls[c.ScrollPath] = &c
	}
}

// SetResponse configures a fixed response for a path.
func (m *MockPMS) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}
}

// FailNext makes the next len(statuses) requests to path fail with the
// given status codes, in order.
func (m *MockPMS) FailNext(path string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], statuses...)
}

// RequestCount returns the number of requests served.
func (m *MockPMS) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockPMS) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// LastHeader returns the headers of the last request.
func (m *MockPMS) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// Requests returns the query of every request made to path.
func (m *MockPMS) Requests(path string) []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.requests[path]...)
}

// Reset clears all tracking counters.
func (m *MockPMS) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.lastHeader = nil
	m.requests = make(map[string][]url.Values)
}

func (m *MockPMS) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.lastHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" {
		m.conditionalCount++
	}
	m.requests[r.URL.Path] = append(m.requests[r.URL.Path], r.URL.Query())

	var failStatus int
	if queue := m.failures[r.URL.Path]; len(queue) > 0 {
		failStatus = queue[0]
		m.failures[r.URL.Path] = queue[1:]
	}
	handler := m.handlers[r.URL.Path]
	standard := m.collections[r.URL.Path]
	scroll := m.scrolls[r.URL.Path]
	remaining := m.RateLimitRemaining
	m.mu.Unlock()

	w.Header().Set("X-RateLimit-Limit", "120")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", "60")

	switch {
	case failStatus != 0:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failStatus)
		fmt.Fprintf(w, `{"status": %d, "detail": "injected failure"}`, failStatus)
	case handler != nil:
		handler(w, r)
	case scroll != nil:
		writeJSON(w, r, scrollPage(scroll, r.URL.Query()), false)
	case standard != nil:
		writeJSON(w, r, standardPage(standard, r.URL.Query()), true)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status": 404, "detail": "not found"}`))
	}
}

func standardPage(c *Collection, q url.Values) map[string]any {
	page := atoiDefault(q.Get("page"), 1)
	size := atoiDefault(q.Get("size"), 10)
	start := min((page-1)*size, len(c.Items))
	end := min(start+size, len(c.Items))
	totalPages := (len(c.Items) + size - 1) / size

	links := map[string]any{
		"self": map[string]string{"href": fmt.Sprintf("%s?page=%d&size=%d", c.Path, page, size)},
	}
	if page < totalPages {
		links["next"] = map[string]string{"href": fmt.Sprintf("%s?page=%d&size=%d", c.Path, page+1, size)}
	}

	return map[string]any{
		"_embedded":   map[string]any{c.EmbeddedKey: slice(c.Items, start, end)},
		"page":        page,
		"page_size":   size,
		"total_items": len(c.Items),
		"total_pages": totalPages,
		"_links":      links,
	}
}

// scrollPage serves a slice starting at the offset encoded in the token.
// Like real scroll APIs, a token is issued even on the final empty slice.
func scrollPage(c *Collection, q url.Values) map[string]any {
	size := atoiDefault(q.Get("size"), 10)
	offset := 0
	if token := q.Get("scroll"); token != "" && token != "1" {
		if raw, err := base64.RawURLEncoding.DecodeString(token); err == nil {
			offset = min(atoiDefault(string(raw), 0), len(c.Items))
		}
	}
	end := min(offset+size, len(c.Items))
	next := base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(end)))

	links := map[string]any{}
	if end < len(c.Items) {
		links["next"] = map[string]string{"href": c.ScrollPath + "?scroll=" + next}
	}

	return map[string]any{
		"_embedded":   map[string]any{c.EmbeddedKey: slice(c.Items, offset, end)},
		"total_items": len(c.Items),
		"_scroll":     next,
		"_links":      links,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, body map[string]any, cacheable bool) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if cacheable {
		sum := sha1.Sum(data)
		etag := `"` + hex.EncodeToString(sum[:8]) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "max-age=60")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}

	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// slice never returns nil so an empty page encodes as [].
func slice(items []any, start, end int) []any {
	if start >= end {
		return []any{}
	}
	return items[start:end]
}

func atoiDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// Units returns n unit fixtures.
func Units(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{
			"id":        i + 1,
			"name":      fmt.Sprintf("Unit %d", i+1),
			"bedrooms":  1 + i%4,
			"bathrooms": 1 + i%2,
		}
	}
	return out
}

// Reservations returns n reservation fixtures.
func Reservations(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{
			"id":            1000 + i,
			"status":        "Confirmed",
			"unitId":        1 + i%7,
			"arrivalDate":   "2026-07-01",
			"departureDate": "2026-07-08",
		}
	}
	return out
}

// Amenities returns n amenity fixtures.
func Amenities(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{
			"id":    i + 1,
			"name":  fmt.Sprintf("Amenity %d", i+1),
			"group": map[string]any{"id": 1 + i%3, "name": "General"},
		}
	}
	return out
}
