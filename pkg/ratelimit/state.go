// Package ratelimit tracks the catalogue's request budget and gates requests.
// It reads X-RateLimit-Remaining / X-RateLimit-Reset on every response and
// Retry-After on 429 answers, and shares the result through Redis so that all
// loaders talking to the same catalogue back off together.
package ratelimit

import (
	"time"
)

// RedisKeyState is the hash holding the shared limiter state.
const RedisKeyState = "catalog:rate_limit"

// Thresholds for rate limit decisions.
const (
	// RemainingThresholdWarning throttles requests when fewer than this many
	// requests remain in the current window.
	RemainingThresholdWarning = 5

	// DefaultCooldown applies to a 429 answer without a usable Retry-After.
	DefaultCooldown = 30 * time.Second
)

// State is the current view of the catalogue's rate limit.
type State struct {
	// Remaining requests in the window; -1 when the catalogue never told us
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets
	ResetAt time.Time `json:"reset_at"`

	// BlockedUntil is set by a 429 answer; no requests go out before it
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when this state was last written
	LastUpdate time.Time `json:"last_update"`
}

// unknownState is the state before any response has been seen.
func unknownState() *State {
	return &State{Remaining: -1}
}

// IsBlocked reports whether a cooldown is active at now.
func (s *State) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// NeedsThrottling reports whether the remaining budget is low but not exhausted
// by a cooldown.
func (s *State) NeedsThrottling(now time.Time) bool {
	if s.Remaining < 0 || s.IsBlocked(now) {
		return false
	}
	if !s.ResetAt.IsZero() && !now.Before(s.ResetAt) {
		// window already rolled over
		return false
	}
	return s.Remaining < RemainingThresholdWarning
}

// CooldownRemaining returns how long requests stay blocked, 0 if not blocked.
func (s *State) CooldownRemaining(now time.Time) time.Duration {
	if !s.IsBlocked(now) {
		return 0
	}
	return s.BlockedUntil.Sub(now)
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
