package api

import (
	"sync"
	"time"
)

// RateLimitConfig holds configuration for the rate limiter
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMin caps every /v1 request per client
	RequestsPerMin int
	// LogRequestsPerMin caps log downloads, which read and decompress
	// archived objects
	LogRequestsPerMin int
}

// DefaultRateLimitConfig returns the limits used by lkt serve
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           true,
		RequestsPerMin:    120,
		LogRequestsPerMin: 30,
	}
}

type window struct {
	count     int
	expiresAt time.Time
}

// RateLimiter counts requests per key in fixed one-minute windows
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	config  RateLimitConfig
	stopCh  chan struct{}
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
// Call Stop when done.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		config:  cfg,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether one more request for key fits under limit and
// counts it if so. A disabled limiter or a limit <= 0 allows everything.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	if !rl.config.Enabled || limit <= 0 {
		return true
	}

	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.After(w.expiresAt) {
		rl.windows[key] = &window{count: 1, expiresAt: now.Add(time.Minute)}
		return true
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.expire()
		case <-rl.stopCh:
			return
		}
	}
}

// expire drops the windows that have run out
func (rl *RateLimiter) expire() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.windows {
		if now.After(w.expiresAt) {
			delete(rl.windows, key)
		}
	}
}

// Stop terminates the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}
