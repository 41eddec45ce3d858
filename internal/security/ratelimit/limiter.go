package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window request limiter keyed by tenant, client
// address or any other caller identity
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	cleanup *time.Ticker
	now     func() time.Time
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	limiter := &Limiter{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		cleanup: time.NewTicker(5 * time.Minute),
		now:     time.Now,
	}
	go limiter.cleanupOldBuckets()
	return limiter
}

// Allow reports whether key may make another request in the default window.
// An empty key is never limited.
func (l *Limiter) Allow(key string) bool {
	if key == "" || l.maxReqs <= 0 {
		return true
	}
	return l.take(key, l.maxReqs, l.window)
}

// AllowStrict applies a tighter, separately counted limit for sensitive
// endpoints such as login
func (l *Limiter) AllowStrict(identifier string, maxReqs int, window time.Duration) bool {
	if maxReqs <= 0 {
		return true
	}
	return l.take("strict:"+identifier, maxReqs, window)
}

func (l *Limiter) take(key string, maxReqs int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-window)
	kept := b.requests[:0]
	for _, t := range b.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.requests = kept
	b.lastSeen = now

	if len(b.requests) >= maxReqs {
		return false
	}
	b.requests = append(b.requests, now)
	return true
}

func (l *Limiter) cleanupOldBuckets() {
	for range l.cleanup.C {
		l.purge(15 * time.Minute)
	}
}

func (l *Limiter) purge(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	staleThreshold := l.now().Add(-idle)
	for key, b := range l.buckets {
		if b.lastSeen.Before(staleThreshold) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) Stop() {
	l.cleanup.Stop()
}
