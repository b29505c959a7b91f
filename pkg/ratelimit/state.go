// Package ratelimit tracks the PMS request quota advertised in the
// X-RateLimit-Remaining and X-RateLimit-Reset response headers and gates
// requests before the quota runs out.
package ratelimit

import (
	"time"
)

// RedisKey holds the shared quota state as a hash.
const RedisKey = "pms:ratelimit:state"

// Response headers read by the tracker.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Default thresholds.
const (
	// DefaultCriticalThreshold blocks requests when remaining falls below it.
	DefaultCriticalThreshold = 5

	// DefaultWarningThreshold throttles requests when remaining falls below it.
	DefaultWarningThreshold = 20
)

// State is the last known PMS quota, shared by all client instances via Redis.
type State struct {
	// Remaining requests in the current window
	Remaining int

	// Limit is the window size, 0 when the PMS does not send it
	Limit int

	// ResetAt is when the window resets
	ResetAt time.Time

	// LastUpdate is when the headers were last seen
	LastUpdate time.Time
}

// Known reports whether the state came from real headers.
func (s State) Known() bool {
	return !s.LastUpdate.IsZero()
}

// IsStale returns true if the state is older than maxAge at now.
func (s State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// TimeUntilReset returns the wait until the window resets, or 0.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
