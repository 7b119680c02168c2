package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sweepInterval = 5 * time.Minute
	idleTTL       = 10 * time.Minute
)

// RateLimitConfig sets the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	cfg     RateLimitConfig
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*client
}

// NewRateLimiter creates a RateLimiter. Idle clients are dropped by a sweeper
// that runs until ctx is done.
func NewRateLimiter(ctx context.Context, cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{cfg: cfg, now: time.Now, clients: make(map[string]*client)}
	go rl.sweep(ctx)
	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idleTTL)
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = rl.now()
	return c.limiter
}

// Handler enforces the limit, answering 429 with Retry-After when a client
// is over budget.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.limiter(clientIP(r))

		now := rl.now()
		res := lim.ReserveN(now, 1)
		if !res.OK() {
			writeTooManyRequests(w, 0)
			return
		}
		if d := res.DelayFrom(now); d > 0 {
			res.CancelAt(now)
			writeTooManyRequests(w, int(math.Ceil(d.Seconds())))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(lim.Tokens())))
		next.ServeHTTP(w, r)
	})
}

// clientIP uses RemoteAddr only; forwarding headers are client controlled.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
}
