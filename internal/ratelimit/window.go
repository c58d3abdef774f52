// Package ratelimit implements a per-key sliding window rate limiter.
// Each key (normally a client IP) gets an independent window of hit
// timestamps; hits older than the window no longer count.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks request hits per key over a sliding time window.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
	done    chan struct{}
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter allowing max hits per key within window.
func NewLimiter(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:     max,
		window:  window,
		now:     time.Now,
		buckets: make(map[string][]time.Time),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a hit for key and reports whether it is within the limit.
// The hit is counted even when the request is rejected, matching the
// behavior of counting every attempt against the window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits := l.prune(key, now)

	if len(hits) >= l.max {
		l.buckets[key] = hits
		return false
	}

	l.buckets[key] = append(hits, now)
	return true
}

// Forgive refunds the most recent hit for key. Callers use this to skip
// counting successful requests, so only failures consume the budget.
func (l *Limiter) Forgive(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.buckets[key]
	if len(hits) == 0 {
		return
	}
	if len(hits) == 1 {
		delete(l.buckets, key)
		return
	}
	l.buckets[key] = hits[:len(hits)-1]
}

// Remaining returns how many hits key has left in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.prune(key, l.now())
	if len(hits) == 0 {
		delete(l.buckets, key)
	} else {
		l.buckets[key] = hits
	}

	remaining := l.max - len(hits)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// prune drops hits that have aged out of the window. Caller holds l.mu.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	hits := l.buckets[key]
	cutoff := now.Add(-l.window)

	// Hits are appended in order, so find the first still-fresh one.
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// StartJanitor launches a background sweep that drops idle keys.
// Call Stop to terminate it.
func (l *Limiter) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// sweep removes keys whose hits have all expired.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.buckets {
		if hits := l.prune(key, now); len(hits) == 0 {
			delete(l.buckets, key)
		} else {
			l.buckets[key] = hits
		}
	}
}

// Stop terminates the janitor goroutine.
func (l *Limiter) Stop() {
	close(l.done)
}
