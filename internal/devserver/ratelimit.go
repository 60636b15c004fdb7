// ABOUTME: Fixed-window login rate limiting and captcha escalation
// ABOUTME: Counters are keyed by normalized identifier so retries from any client share a window

package devserver

import (
	"sync"
	"time"
)

// counter tracks attempts within a fixed time window
type counter struct {
	count     int
	expiresAt time.Time
}

// RateLimiter enforces a maximum number of attempts per time window.
// Each key gets an independent counter.
type RateLimiter struct {
	mu           sync.Mutex
	windows      map[string]*counter
	limit        int
	window       time.Duration
	now          func() time.Time
	sweepCounter int
}

// NewRateLimiter creates a rate limiter that allows limit attempts per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*counter),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether another attempt for key is permitted, or the time until the window resets
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, exists := rl.windows[key]

	// !now.Before so the boundary instant starts a new window
	if !exists || !now.Before(c.expiresAt) {
		rl.windows[key] = &counter{count: 1, expiresAt: now.Add(rl.window)}

		rl.sweepCounter++
		if rl.sweepCounter >= 100 {
			rl.sweep(now)
			rl.sweepCounter = 0
		}
		return true, 0
	}

	if c.count < rl.limit {
		c.count++
		return true, 0
	}
	return false, c.expiresAt.Sub(now)
}

// sweep removes expired windows; rl.mu must be held
func (rl *RateLimiter) sweep(now time.Time) {
	for k, c := range rl.windows {
		if !now.Before(c.expiresAt) {
			delete(rl.windows, k)
		}
	}
}

// FailureTracker counts consecutive failed logins per key
type FailureTracker struct {
	mu        sync.Mutex
	failures  map[string]int
	threshold int
}

// NewFailureTracker demands a captcha once threshold consecutive failures are recorded
func NewFailureTracker(threshold int) *FailureTracker {
	return &FailureTracker{failures: map[string]int{}, threshold: threshold}
}

// Fail records a failed attempt
func (f *FailureTracker) Fail(key string) {
	f.mu.Lock()
	f.failures[key]++
	f.mu.Unlock()
}

// Reset clears the count after a successful attempt
func (f *FailureTracker) Reset(key string) {
	f.mu.Lock()
	delete(f.failures, key)
	f.mu.Unlock()
}

// NeedsCaptcha reports whether key has hit the threshold
func (f *FailureTracker) NeedsCaptcha(key string) bool {
	if f.threshold <= 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[key] >= f.threshold
}
