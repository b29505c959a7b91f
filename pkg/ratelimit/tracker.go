package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrQuotaExhausted is returned when the quota is critical and the reset is
// further away than the tracker is willing to wait.
var ErrQuotaExhausted = errors.New("pms rate limit quota exhausted")

// Prometheus metrics for rate limit tracking.
var (
	remainingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pms_ratelimit_remaining",
		Help: "Requests remaining in the current PMS rate limit window",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pms_ratelimit_blocks_total",
		Help: "Total requests that waited for or were refused by a critical quota",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pms_ratelimit_throttles_total",
		Help: "Total requests delayed because the quota was below the warning threshold",
	})
)

// Config holds tracker thresholds.
type Config struct {
	CriticalThreshold int
	WarningThreshold  int

	// ThrottleDelay is the pause applied below the warning threshold
	ThrottleDelay time.Duration

	// MaxWait caps how long Allow waits for a critical quota to reset
	MaxWait time.Duration

	// StaleAfter ignores state older than this
	StaleAfter time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		CriticalThreshold: DefaultCriticalThreshold,
		WarningThreshold:  DefaultWarningThreshold,
		ThrottleDelay:     500 * time.Millisecond,
		MaxWait:           30 * time.Second,
		StaleAfter:        5 * time.Minute,
	}
}

// Tracker monitors the PMS quota and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	config Config
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, cfg Config) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		config: cfg,
		now:    time.Now,
	}
}

// GetState reads the quota state from Redis.
// A zero State is returned when nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (State, error) {
	fields, err := t.redis.HGetAll(ctx, RedisKey).Result()
	if err != nil {
		return State{}, fmt.Errorf("get rate limit state: %w", err)
	}
	if len(fields) == 0 {
		return State{}, nil
	}

	var s State
	if s.Remaining, err = strconv.Atoi(fields["remaining"]); err != nil {
		return State{}, fmt.Errorf("parse remaining: %w", err)
	}
	s.Limit, _ = strconv.Atoi(fields["limit"])

	resetUnix, err := strconv.ParseInt(fields["reset_at"], 10, 64)
	if err != nil {
		return State{}, fmt.Errorf("parse reset_at: %w", err)
	}
	s.ResetAt = time.Unix(resetUnix, 0)

	updatedUnix, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return State{}, fmt.Errorf("parse updated_at: %w", err)
	}
	s.LastUpdate = time.Unix(0, updatedUnix)

	return s, nil
}

// UpdateFromHeaders records the quota advertised by a response.
// Responses without the remaining header are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetSeconds, err := strconv.Atoi(headers.Get(HeaderReset))
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	limit, _ := strconv.Atoi(headers.Get(HeaderLimit))

	now := t.now()
	state := State{
		Remaining:  remain,
		Limit:      limit,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}

	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, RedisKey, map[string]any{
		"remaining":  state.Remaining,
		"limit":      state.Limit,
		"reset_at":   state.ResetAt.Unix(),
		"updated_at": state.LastUpdate.UnixNano(),
	})
	pipe.Expire(ctx, RedisKey, time.Duration(resetSeconds)*time.Second+t.config.StaleAfter)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	remainingGauge.Set(float64(remain))

	switch {
	case remain < t.config.CriticalThreshold:
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("PMS rate limit CRITICAL - requests will wait for reset")
	case remain < t.config.WarningThreshold:
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("PMS rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("PMS rate limit state updated")
	}

	return nil
}

// Allow blocks until a request may be sent.
// Below the critical threshold it waits for the window reset, up to
// MaxWait; below the warning threshold it pauses for ThrottleDelay.
func (t *Tracker) Allow(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	now := t.now()
	if !state.Known() || state.IsStale(now, t.config.StaleAfter) {
		return nil
	}

	switch {
	case state.Remaining < t.config.CriticalThreshold:
		wait := state.TimeUntilReset(now)
		blocksTotal.Inc()
		if wait > t.config.MaxWait {
			t.logger.Error().
				Int("remaining", state.Remaining).
				Dur("wait_duration", wait).
				Msg("PMS rate limit critical - refusing request")
			return fmt.Errorf("%w: resets in %s", ErrQuotaExhausted, wait)
		}
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", wait).
			Msg("PMS rate limit critical - waiting for reset")
		return sleep(ctx, wait)

	case state.Remaining < t.config.WarningThreshold:
		throttlesTotal.Inc()
		return sleep(ctx, t.config.ThrottleDelay)
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
