// Package ratelimit implements per-key token-bucket admission control. It
// wraps one golang.org/x/time/rate.Limiter per bucket key behind a map
// guarded by sync.RWMutex, with a periodic cleanup goroutine, generalized to
// an explicit resolveBucket/tryConsume API keyed by endpoint class plus
// source identity instead of IP alone.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Class namespaces a bucket key so consumption against one endpoint class
// never affects another: registration and login use distinct key
// namespaces.
type Class string

const (
	ClassLogin        Class = "login"
	ClassRegistration Class = "registration"
)

// Defaults per endpoint class, overridable via internal/config's RATE_LIMIT_*
// environment variables.
var (
	DefaultLoginCapacity    = 5
	DefaultLoginPeriod      = 15 * time.Minute
	DefaultRegisterCapacity = 3
	DefaultRegisterPeriod   = time.Hour
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter maintains per-key token buckets in memory. Safe for concurrent
// use from any number of goroutines.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	idleTTL time.Duration
}

// New constructs a Limiter and starts its background cleanup goroutine,
// which purges buckets unused for longer than idleTTL so long-running
// processes do not accumulate one bucket per ever-seen source forever.
// idleTTL <= 0 uses a 30-minute default.
func New(idleTTL time.Duration) *Limiter {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		idleTTL: idleTTL,
	}
	go l.cleanupLoop()
	return l
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.sweep()
	}
}

func (l *Limiter) sweep() {
	cutoff := time.Now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Key builds the namespaced bucket key for a class and source identity
// (normally the client IP, see ExtractIP).
func Key(class Class, identity string) string {
	return fmt.Sprintf("%s:%s", class, identity)
}

// ResolveBucket gets or creates the bucket for key. The first call for a key
// instantiates a full bucket (burst = capacity); subsequent calls return the
// same underlying limiter.
func (l *Limiter) ResolveBucket(key string, capacity int, refillPeriod time.Duration) *rate.Limiter {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		l.touch(key)
		return b.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		b.lastSeen = time.Now()
		return b.limiter
	}

	limit := rate.Limit(float64(capacity) / refillPeriod.Seconds())
	limiter := rate.NewLimiter(limit, capacity)
	l.buckets[key] = &bucket{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (l *Limiter) touch(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		b.lastSeen = time.Now()
	}
}

// TryConsume attempts to remove n tokens from bucket, returning false if
// unavailable. Safe for concurrent use: rate.Limiter is internally
// mutex-protected.
func TryConsume(bucket *rate.Limiter, n int) bool {
	return bucket.AllowN(time.Now(), n)
}

// Allow is a convenience wrapper combining ResolveBucket and TryConsume(1)
// for the common single-token admission check the HTTP edge performs per
// request.
func (l *Limiter) Allow(class Class, identity string, capacity int, refillPeriod time.Duration) bool {
	b := l.ResolveBucket(Key(class, identity), capacity, refillPeriod)
	return TryConsume(b, 1)
}

// ExtractIP and Middleware are defined in middleware.go.

