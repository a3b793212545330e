package ratelimit

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newMemoryTracker() *Tracker {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewTracker(nil, logger)
}

func TestUpdateFromResponse_Headers(t *testing.T) {
	tests := []struct {
		name          string
		remainHeader  string
		resetHeader   string
		wantRemaining int
		shouldError   bool
	}{
		{
			name:          "healthy budget",
			remainHeader:  "100",
			resetHeader:   "60",
			wantRemaining: 100,
		},
		{
			name:          "low budget",
			remainHeader:  "3",
			resetHeader:   "30",
			wantRemaining: 3,
		},
		{
			name:          "no headers",
			wantRemaining: -1,
		},
		{
			name:         "invalid remaining header",
			remainHeader: "invalid",
			resetHeader:  "60",
			shouldError:  true,
		},
		{
			name:         "invalid reset header",
			remainHeader: "100",
			resetHeader:  "invalid",
			shouldError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newMemoryTracker()
			headers := http.Header{}
			if tt.remainHeader != "" {
				headers.Set("X-RateLimit-Remaining", tt.remainHeader)
			}
			if tt.resetHeader != "" {
				headers.Set("X-RateLimit-Reset", tt.resetHeader)
			}

			err := tracker.UpdateFromResponse(context.Background(), http.StatusOK, headers)
			if tt.shouldError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			state, err := tracker.GetState(context.Background())
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
		})
	}
}

func TestUpdateFromResponse_TooManyRequests(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter string
		wantMin    time.Duration
		wantMax    time.Duration
	}{
		{
			name:       "delta seconds",
			retryAfter: "20",
			wantMin:    19 * time.Second,
			wantMax:    20 * time.Second,
		},
		{
			name:       "missing header uses default",
			retryAfter: "",
			wantMin:    DefaultCooldown - time.Second,
			wantMax:    DefaultCooldown,
		},
		{
			name:       "garbage uses default",
			retryAfter: "soon",
			wantMin:    DefaultCooldown - time.Second,
			wantMax:    DefaultCooldown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newMemoryTracker()
			headers := http.Header{}
			if tt.retryAfter != "" {
				headers.Set("Retry-After", tt.retryAfter)
			}

			if err := tracker.UpdateFromResponse(context.Background(), http.StatusTooManyRequests, headers); err != nil {
				t.Fatalf("UpdateFromResponse() error = %v", err)
			}

			state, _ := tracker.GetState(context.Background())
			cooldown := state.CooldownRemaining(time.Now())
			if cooldown < tt.wantMin || cooldown > tt.wantMax {
				t.Errorf("cooldown = %v, want between %v and %v", cooldown, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	now := time.Now()
	at := now.Add(45 * time.Second).UTC().Format(http.TimeFormat)

	got := parseRetryAfter(at, now)
	if got < 43*time.Second || got > 45*time.Second {
		t.Errorf("parseRetryAfter(%q) = %v, want ~45s", at, got)
	}

	past := now.Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(past, now); got != 0 {
		t.Errorf("parseRetryAfter(past) = %v, want 0", got)
	}
}

func TestShouldAllowRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown budget allows", func(t *testing.T) {
		tracker := newMemoryTracker()
		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed {
			t.Errorf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
		}
	})

	t.Run("cooldown refuses", func(t *testing.T) {
		tracker := newMemoryTracker()
		headers := http.Header{}
		headers.Set("Retry-After", "60")
		if err := tracker.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers); err != nil {
			t.Fatal(err)
		}

		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil {
			t.Fatalf("ShouldAllowRequest() error = %v", err)
		}
		if allowed {
			t.Error("expected request to be refused during cooldown")
		}
	})

	t.Run("low budget throttles then allows", func(t *testing.T) {
		tracker := newMemoryTracker()
		tracker.SetThrottleDelay(20 * time.Millisecond)
		headers := http.Header{}
		headers.Set("X-RateLimit-Remaining", "1")
		headers.Set("X-RateLimit-Reset", "60")
		if err := tracker.UpdateFromResponse(ctx, http.StatusOK, headers); err != nil {
			t.Fatal(err)
		}

		start := time.Now()
		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed {
			t.Fatalf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("expected throttle delay, returned after %v", elapsed)
		}
	})

	t.Run("throttle honours cancellation", func(t *testing.T) {
		tracker := newMemoryTracker()
		tracker.SetThrottleDelay(time.Hour)
		headers := http.Header{}
		headers.Set("X-RateLimit-Remaining", "0")
		headers.Set("X-RateLimit-Reset", "60")
		if err := tracker.UpdateFromResponse(ctx, http.StatusOK, headers); err != nil {
			t.Fatal(err)
		}

		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		allowed, err := tracker.ShouldAllowRequest(cctx)
		if allowed || err == nil {
			t.Errorf("ShouldAllowRequest() = %v, %v; want false, context error", allowed, err)
		}
	})
}
