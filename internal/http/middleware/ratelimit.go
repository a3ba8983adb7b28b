package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimitPolicy caps request throughput per client IP. A zero PerSecond
// disables limiting entirely.
type RateLimitPolicy struct {
	PerSecond float64
	Burst     int
}

// Enabled reports whether the policy throttles at all.
func (p RateLimitPolicy) Enabled() bool {
	return p.PerSecond > 0
}

const (
	sweepEvery = 5 * time.Minute
	idleFor    = 10 * time.Minute
)

// ipLimiter is a token-bucket throttle keyed by client IP. Idle buckets
// are swept opportunistically on the request path; there is no background
// goroutine to leak.
type ipLimiter struct {
	policy RateLimitPolicy
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

func newIPLimiter(policy RateLimitPolicy) *ipLimiter {
	return &ipLimiter{
		policy:  policy,
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	max := float64(l.policy.Burst)
	if max < 1 {
		max = 1
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &tokenBucket{tokens: max}
		l.buckets[ip] = b
	} else {
		b.tokens += now.Sub(b.seen).Seconds() * l.policy.PerSecond
		if b.tokens > max {
			b.tokens = max
		}
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *ipLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepEvery {
		return
	}
	l.lastSweep = now
	for ip, b := range l.buckets {
		if now.Sub(b.seen) > idleFor {
			delete(l.buckets, ip)
		}
	}
}

// clientIP picks the address the limiter keys on. chi's RealIP middleware
// runs first and rewrites RemoteAddr from X-Real-Ip / X-Forwarded-For.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimit rejects requests above the configured policy with
// 429 Too Many Requests. A disabled policy passes everything through.
func RateLimit(policy RateLimitPolicy) func(http.Handler) http.Handler {
	limiter := newIPLimiter(policy)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy.Enabled() && !limiter.allow(clientIP(r)) {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
