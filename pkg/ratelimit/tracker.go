package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	catalogRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_rate_limit_remaining",
		Help: "Requests remaining in the current catalogue rate limit window",
	})

	catalogRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_blocks_total",
		Help: "Total number of requests refused during a cooldown",
	})

	catalogRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the budget is low",
	})

	catalogRateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_cooldowns_total",
		Help: "Total number of 429 answers that started a cooldown",
	})
)

// DefaultThrottleDelay is the pause applied to a request while throttling.
const DefaultThrottleDelay = 1 * time.Second

// Tracker keeps the catalogue rate limit state. With a Redis client the state
// is shared between processes; without one it lives in memory.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration

	mu    sync.Mutex
	local *State
}

// NewTracker creates a rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
		local:         unknownState(),
	}
}

// SetThrottleDelay overrides the pause applied while throttling.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState returns the current state.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		s := *t.local
		return &s, nil
	}

	fields, err := t.redis.HGetAll(ctx, RedisKeyState).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}
	if len(fields) == 0 {
		t.logger.Debug().Msg("No rate limit state in Redis, assuming unknown budget")
		return unknownState(), nil
	}

	state := unknownState()
	if v, ok := fields["remaining"]; ok {
		if state.Remaining, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("parse remaining: %w", err)
		}
	}
	state.ResetAt = unixField(fields, "reset_at")
	state.BlockedUntil = unixField(fields, "blocked_until")
	state.LastUpdate = unixField(fields, "last_update")
	return state, nil
}

func unixField(fields map[string]string, name string) time.Time {
	v, ok := fields[name]
	if !ok || v == "0" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func unixValue(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// UpdateFromResponse records the budget headers of a response and starts a
// cooldown on 429.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	now := time.Now()

	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	changed := false

	if remainStr := headers.Get("X-RateLimit-Remaining"); remainStr != "" {
		remain, err := strconv.Atoi(remainStr)
		if err != nil {
			return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
		}
		state.Remaining = remain
		changed = true
		catalogRateLimitRemaining.Set(float64(remain))

		if resetStr := headers.Get("X-RateLimit-Reset"); resetStr != "" {
			resetSeconds, err := strconv.Atoi(resetStr)
			if err != nil {
				return fmt.Errorf("parse X-RateLimit-Reset header: %w", err)
			}
			state.ResetAt = now.Add(time.Duration(resetSeconds) * time.Second)
		}
	}

	if statusCode == http.StatusTooManyRequests {
		state.BlockedUntil = now.Add(parseRetryAfter(headers.Get("Retry-After"), now))
		changed = true
		catalogRateLimitCooldownsTotal.Inc()
		t.logger.Warn().
			Time("blocked_until", state.BlockedUntil).
			Msg("Catalogue rate limit hit - cooling down")
	}

	if !changed {
		return nil
	}
	state.LastUpdate = now

	if err := t.store(ctx, state); err != nil {
		return err
	}

	if state.NeedsThrottling(now) {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Catalogue rate limit low - requests will be throttled")
	} else {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Catalogue rate limit state updated")
	}
	return nil
}

func (t *Tracker) store(ctx context.Context, state *State) error {
	if t.redis == nil {
		t.mu.Lock()
		s := *state
		t.local = &s
		t.mu.Unlock()
		return nil
	}

	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, RedisKeyState,
		"remaining", state.Remaining,
		"reset_at", unixValue(state.ResetAt),
		"blocked_until", unixValue(state.BlockedUntil),
		"last_update", unixValue(state.LastUpdate),
	)
	pipe.Expire(ctx, RedisKeyState, time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return DefaultCooldown
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultCooldown
}

// ShouldAllowRequest returns false during a cooldown. While the budget is low
// it waits throttleDelay (or until ctx is done) and then allows the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	now := time.Now()
	if state.IsBlocked(now) {
		t.logger.Warn().
			Dur("cooldown_remaining", state.CooldownRemaining(now)).
			Msg("Catalogue cooldown active - refusing request")
		catalogRateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(now) {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Msg("Catalogue rate limit low - throttling request")
		catalogRateLimitThrottlesTotal.Inc()

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
