package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements a sliding-window rate limiter with in-process
// state. Each key tracks the timestamps of its admitted requests; entries
// older than the window are pruned on every check.
//
// State is per-instance. For rate limits shared across replicas use
// RedisLimiter instead.
type MemoryLimiter struct {
	window  time.Duration
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter creates an in-memory sliding-window limiter.
func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		window:  window,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check records a request against the key's quota if under the limit.
func (l *MemoryLimiter) Check(_ context.Context, key string, limit int) (Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.prune(key, now)
	reset := now.Unix() + int64(l.window/time.Second)

	if len(kept) >= limit {
		return Info{Limit: limit, Remaining: 0, Reset: reset, Allowed: false}, nil
	}

	l.windows[key] = append(kept, now)
	remaining := limit - len(kept) - 1
	if remaining < 0 {
		remaining = 0
	}
	return Info{Limit: limit, Remaining: remaining, Reset: reset, Allowed: true}, nil
}

// Peek reports the current window state without consuming quota.
func (l *MemoryLimiter) Peek(_ context.Context, key string, limit int) (Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.prune(key, now)
	reset := now.Unix() + int64(l.window/time.Second)

	remaining := limit - len(kept)
	if remaining < 0 {
		remaining = 0
	}
	return Info{Limit: limit, Remaining: remaining, Reset: reset, Allowed: true}, nil
}

// prune drops timestamps at or before now-window and stores the survivors.
// Caller must hold l.mu.
func (l *MemoryLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	stamps := l.windows[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.windows, key)
		return nil
	}
	l.windows[key] = kept
	return kept
}

// StartCleanup launches a background goroutine that periodically drops
// keys whose windows have fully expired. It stops when ctx is cancelled.
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	for key, stamps := range l.windows {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.windows, key)
		}
	}
}

// Size returns the number of keys currently tracked.
func (l *MemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
