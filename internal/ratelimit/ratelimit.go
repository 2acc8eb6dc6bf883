// Package ratelimit throttles sign-in attempts per client address.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a token-bucket limiter keyed by arbitrary strings (client IPs
// for the login form). Each key gets rate attempts per window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
	now     func() time.Time
}

// New creates a Limiter that allows rate requests per window.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
	}
}

// getBucket must be called with l.mu held.
func (l *Limiter) getBucket(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.rate), lastRefill: l.now()}
		l.buckets[key] = b
	}
	return b
}

// refill must be called with l.mu held.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * float64(l.rate) / l.window.Seconds()
	if b.tokens > float64(l.rate) {
		b.tokens = float64(l.rate)
	}
	b.lastRefill = now
}

// Allow consumes one token for key, reporting false when none is left.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(key)
	l.refill(b)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Status returns the limit, the whole tokens left and when the bucket for key
// is full again.
func (l *Limiter) Status(key string) (limit int, remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(key)
	l.refill(b)

	limit = l.rate
	remaining = int(b.tokens)
	if remaining < 0 {
		remaining = 0
	}

	deficit := float64(l.rate) - b.tokens
	if deficit <= 0 {
		resetAt = l.now()
	} else {
		perSecond := float64(l.rate) / l.window.Seconds()
		resetAt = l.now().Add(time.Duration(deficit / perSecond * float64(time.Second)))
	}
	return
}

// Sweep drops buckets that have refilled completely. A full bucket behaves
// exactly like a missing one. It returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		l.refill(b)
		if b.tokens >= float64(l.rate) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// SweepEvery calls Sweep on every tick of interval until ctx is done.
func (l *Limiter) SweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
