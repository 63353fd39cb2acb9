package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds HTTP requests per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration // idle buckets are swept after two intervals

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable behind a reverse proxy that overwrites both headers.
	TrustProxyHeaders bool
}

// DefaultRateLimitConfig allows 10 req/s per IP with bursts of 20.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

// LimiterStats is a point-in-time view of a limiter for logs and tests.
type LimiterStats struct {
	Allowed  uint64
	Rejected uint64
	Tracked  int // IPs currently holding state
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter is a token bucket per client IP in front of the HTTP routes.
type IPRateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*ipBucket

	allowed  atomic.Uint64
	rejected atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter starts the limiter and its idle sweeper. Call Stop when done.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*ipBucket),
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow spends one token from ip's bucket.
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	ok = b.limiter.AllowN(now, 1)
	rl.mu.Unlock()

	if ok {
		rl.allowed.Add(1)
	} else {
		rl.rejected.Add(1)
	}
	return ok
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.sweep(now.Add(-2 * rl.cfg.CleanupInterval))
		}
	}
}

// sweep forgets every bucket idle since before cutoff.
func (rl *IPRateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// Middleware rejects over-budget requests with 429 before they reach a handler.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientIP(r, rl.cfg.TrustProxyHeaders)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats reports counters and the number of tracked IPs.
func (rl *IPRateLimiter) Stats() LimiterStats {
	rl.mu.Lock()
	tracked := len(rl.buckets)
	rl.mu.Unlock()
	return LimiterStats{
		Allowed:  rl.allowed.Load(),
		Rejected: rl.rejected.Load(),
		Tracked:  tracked,
	}
}

// ClientIP identifies the peer behind r. Forwarding headers are attacker
// controlled unless a proxy rewrites them, so they are only read when
// trustProxy is set; otherwise the TCP peer address is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ConnLimiter caps concurrent WebSocket connections per IP. An IP with no open
// connection holds no state.
type ConnLimiter struct {
	maxPerIP int // 0 = unlimited, connections are still counted

	mu   sync.Mutex
	open map[string]int

	rejected atomic.Uint64
}

// NewConnLimiter creates a limiter allowing maxPerIP connections per IP.
func NewConnLimiter(maxPerIP int) *ConnLimiter {
	return &ConnLimiter{
		maxPerIP: maxPerIP,
		open:     make(map[string]int),
	}
}

// Acquire takes a slot for ip. Every successful Acquire must be paired with
// one Release.
func (l *ConnLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxPerIP > 0 && l.open[ip] >= l.maxPerIP {
		l.rejected.Add(1)
		return false
	}
	l.open[ip]++
	return true
}

// Release frees a slot taken by Acquire. The IP is forgotten at zero.
func (l *ConnLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.open[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(l.open, ip)
		return
	}
	l.open[ip] = n - 1
}

// Count returns the open connections held by ip.
func (l *ConnLimiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[ip]
}

// Stats reports rejections and the number of IPs with open connections.
func (l *ConnLimiter) Stats() LimiterStats {
	l.mu.Lock()
	tracked := len(l.open)
	l.mu.Unlock()
	return LimiterStats{Rejected: l.rejected.Load(), Tracked: tracked}
}

// DefaultAllowedOrigins accepts every origin.
var DefaultAllowedOrigins = []string{"*"}

// IsAllowedOrigin checks origin against a list of exact origins and
// "scheme://host:*" port wildcards. "*" allows everything. Requests without an
// Origin header come from non-browser clients and are allowed.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}

	for _, a := range allowed {
		switch {
		case a == "*":
			return true
		case a == origin:
			return true
		case strings.HasSuffix(a, ":*"):
			prefix := strings.TrimSuffix(a, "*")
			if origin == strings.TrimSuffix(prefix, ":") || strings.HasPrefix(origin, prefix) {
				return true
			}
		}
	}
	return false
}
