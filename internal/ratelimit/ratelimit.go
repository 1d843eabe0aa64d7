package ratelimit

import (
	"sync"
	"time"
)

// Config holds burst limiting configuration. This is a short-window guard
// against rapid-fire requests; the per-day message allowance is enforced
// separately by the quota service.
type Config struct {
	WindowSize    time.Duration // sliding window for counting requests
	MaxAttempts   int           // requests allowed per window
	CleanupPeriod time.Duration // how often stale entries are dropped
}

// DefaultStreamConfig returns the defaults for the streaming endpoint.
func DefaultStreamConfig() *Config {
	return &Config{
		WindowSize:    time.Minute,
		MaxAttempts:   20,
		CleanupPeriod: 10 * time.Minute,
	}
}

// Info describes the outcome of one admission check.
type Info struct {
	Allowed    bool
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type windowRecord struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// MemoryLimiter implements in-memory burst limiting keyed by an arbitrary
// identifier (user id or client address).
type MemoryLimiter struct {
	config  *Config
	windows map[string]*windowRecord
	mu      sync.Mutex
	stopCh  chan struct{}
}

func NewMemoryLimiter(config *Config) *MemoryLimiter {
	limiter := &MemoryLimiter{
		config:  config,
		windows: make(map[string]*windowRecord),
		stopCh:  make(chan struct{}),
	}
	go limiter.cleanupLoop()
	return limiter
}

// Allow checks and counts one request for the identifier.
func (rl *MemoryLimiter) Allow(identifier string) (bool, *Info) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	record, exists := rl.windows[identifier]

	if !exists || now.Sub(record.firstSeen) > rl.config.WindowSize {
		rl.windows[identifier] = &windowRecord{count: 1, firstSeen: now, lastSeen: now}
		return true, &Info{
			Allowed:   true,
			Remaining: rl.config.MaxAttempts - 1,
			ResetTime: now.Add(rl.config.WindowSize),
		}
	}

	record.lastSeen = now
	if record.count >= rl.config.MaxAttempts {
		resetAt := record.firstSeen.Add(rl.config.WindowSize)
		return false, &Info{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	record.count++
	return true, &Info{
		Allowed:   true,
		Remaining: rl.config.MaxAttempts - record.count,
		ResetTime: record.firstSeen.Add(rl.config.WindowSize),
	}
}

// Stop terminates the cleanup goroutine.
func (rl *MemoryLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *MemoryLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-2 * rl.config.WindowSize)
	for id, record := range rl.windows {
		if record.lastSeen.Before(cutoff) {
			delete(rl.windows, id)
		}
	}
}
