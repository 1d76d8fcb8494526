package api

import (
	"sync"
	"time"
)

// RateLimiter implements a per-device sliding window limiter.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter and starts the background eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stop:     make(chan struct{}),
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	recent := r.fresh(r.requests[key], now.Add(-r.window))
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Close stops the eviction goroutine.
func (r *RateLimiter) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *RateLimiter) fresh(times []time.Time, cutoff time.Time) []time.Time {
	var out []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// startEviction periodically drops keys with no requests inside the window.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.mu.Lock()
				cutoff := time.Now().Add(-r.window)
				for key, times := range r.requests {
					if fresh := r.fresh(times, cutoff); len(fresh) == 0 {
						delete(r.requests, key)
					} else {
						r.requests[key] = fresh
					}
				}
				r.mu.Unlock()
			case <-r.stop:
				return
			}
		}
	}()
}
