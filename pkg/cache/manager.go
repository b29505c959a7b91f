package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found or is stale
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

const (
	// DefaultTTL applies when a response carries no freshness headers
	DefaultTTL = time.Minute

	// DefaultStaleWindow keeps expired entries around for ETag revalidation
	DefaultStaleWindow = 10 * time.Minute
)

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(clock Clock) Option {
	return func(m *Manager) {
		m.now = clock
	}
}

// WithDefaultTTL sets the TTL used when a response has no freshness headers.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// WithStaleWindow sets how long expired entries stay available for revalidation.
func WithStaleWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.staleWindow = d
		}
	}
}

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis       *redis.Client
	now         Clock
	defaultTTL  time.Duration
	staleWindow time.Duration
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client, opts ...Option) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	m := &Manager{
		redis:       redisClient,
		now:         time.Now,
		defaultTTL:  DefaultTTL,
		staleWindow: DefaultStaleWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// DefaultTTL returns the fallback TTL.
func (m *Manager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// Get returns a fresh entry. Stale and absent entries return ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	entry, err := m.load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.Inc()
		}
		return nil, err
	}

	if entry.IsExpired(m.now()) {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return entry, nil
}

// GetStale returns a stored entry regardless of freshness.
// Used to revalidate an expired entry with its ETag.
func (m *Manager) GetStale(ctx context.Context, key Key) (*Entry, error) {
	return m.load(ctx, key)
}

// Set stores an entry. Entries already expired are not stored.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL(m.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl+m.staleWindow).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Refresh extends a stored entry after a 304 Not Modified and returns it.
func (m *Manager) Refresh(ctx context.Context, key Key, expires time.Time) (*Entry, error) {
	entry, err := m.load(ctx, key)
	if err != nil {
		return nil, err
	}

	entry.Expires = expires
	if err := m.Set(ctx, key, entry); err != nil {
		return nil, err
	}
	NotModifiedResponses.Inc()
	return entry, nil
}

func (m *Manager) load(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}
