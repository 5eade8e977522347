package studentmode

import (
	"context"
	"sync"
	"time"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// ThrottleConfig tunes the sliding-window limiter.
type ThrottleConfig struct {
	MaxFailures int
	Window      time.Duration
	Lockout     time.Duration
}

// DefaultThrottleConfig locks a key for 10 minutes after 5 failures inside a
// 10-minute window.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{MaxFailures: 5, Window: 10 * time.Minute, Lockout: 10 * time.Minute}
}

type attemptState struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
}

// Throttle is a process-local sliding-window limiter keyed by client address
// plus operation scope. The lock only guards the counter map; it is never
// held across credential verification.
type Throttle struct {
	mu      sync.Mutex
	entries map[string]*attemptState
	cfg     ThrottleConfig
	now     func() time.Time
}

// NewThrottle builds a Throttle.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Minute
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 10 * time.Minute
	}
	return &Throttle{
		entries: make(map[string]*attemptState),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Check reports whether the key may attempt verification. While locked it
// returns RateLimitedError carrying the remaining lockout; while open it
// returns how many failures remain before lockout.
func (t *Throttle) Check(key string) (remaining int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state, ok := t.entries[key]
	if !ok {
		return t.cfg.MaxFailures, nil
	}
	if !state.lockedUntil.IsZero() {
		if now.Before(state.lockedUntil) {
			return 0, &shared.RateLimitedError{RetryAfter: state.lockedUntil.Sub(now)}
		}
		// Lock expired: the key starts over.
		delete(t.entries, key)
		return t.cfg.MaxFailures, nil
	}
	if now.Sub(state.windowStart) > t.cfg.Window {
		delete(t.entries, key)
		return t.cfg.MaxFailures, nil
	}
	return t.cfg.MaxFailures - state.failures, nil
}

// Fail counts a failed verification. Reaching the failure limit inside the
// window locks the key; the returned error is non-nil in that case.
func (t *Throttle) Fail(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state, ok := t.entries[key]
	if !ok || now.Sub(state.windowStart) > t.cfg.Window {
		state = &attemptState{windowStart: now}
		t.entries[key] = state
	}
	state.failures++
	if state.failures >= t.cfg.MaxFailures {
		state.lockedUntil = now.Add(t.cfg.Lockout)
		return &shared.RateLimitedError{RetryAfter: t.cfg.Lockout}
	}
	return nil
}

// Reset clears all counters for the key after a successful verification.
func (t *Throttle) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// Evict drops stale entries so the map stays bounded.
func (t *Throttle) Evict() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, state := range t.entries {
		if !state.lockedUntil.IsZero() {
			if now.After(state.lockedUntil) {
				delete(t.entries, key)
			}
			continue
		}
		if now.Sub(state.windowStart) > t.cfg.Window {
			delete(t.entries, key)
		}
	}
}

// Run evicts stale keys periodically until the context is cancelled.
func (t *Throttle) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Evict()
		}
	}
}
