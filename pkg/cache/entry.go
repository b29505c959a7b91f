package cache

import (
	"time"
)

// Entry is a cached PMS response body.
type Entry struct {
	Data       []byte    `json:"data"`
	ETag       string    `json:"etag,omitempty"`
	Expires    time.Time `json:"expires"`
	StatusCode int       `json:"status_code"`
	CachedAt   time.Time `json:"cached_at"`
}

// IsExpired reports whether the entry is stale at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time left until expiry at now, or 0.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
