package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// maxBodySize caps request bodies; the largest legitimate payload is a
// notification intent with metadata, well under this.
const maxBodySize = 1 << 20 // 1MB

// SecurityHeadersMiddleware sets standard hardening headers on every
// response. This is a JSON/websocket API so there is no CSP to speak of
// beyond denying framing.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		next.ServeHTTP(w, r)
	})
}

// LimitBodyMiddleware caps the request body size so a single client
// cannot hold a handler hostage with an unbounded upload.
func LimitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter tracks a token bucket per client IP. Stale visitors are
// swept periodically so the map does not grow without bound.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	lastSeen func() time.Time
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter returns a limiter allowing perMinute requests per IP
// with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		ttl:      3 * time.Minute,
		lastSeen: time.Now,
	}
	go rl.sweep()
	return rl
}

// Allow reports whether ip may make another request right now.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.seen = rl.lastSeen()
	return v.limiter.Allow()
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := rl.lastSeen().Add(-rl.ttl)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if v.seen.Before(cutoff) {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitConfig routes request classes to separate limiters so a
// flood of report submissions cannot starve notification reads.
type RateLimitConfig struct {
	WriteLimiter  *RateLimiter
	APILimiter    *RateLimiter
	GlobalLimiter *RateLimiter
}

// NewDefaultRateLimitConfig returns production limits.
func NewDefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		WriteLimiter:  NewRateLimiter(30, 10),
		APILimiter:    NewRateLimiter(300, 50),
		GlobalLimiter: NewRateLimiter(600, 100),
	}
}

// RateLimitMiddleware enforces per-IP limits, picking a limiter by
// request class.
func RateLimitMiddleware(config *RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r)

			var limiter *RateLimiter
			switch {
			case r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete:
				limiter = config.WriteLimiter
			case strings.HasPrefix(r.URL.Path, "/api/"):
				limiter = config.APILimiter
			default:
				limiter = config.GlobalLimiter
			}

			if !limiter.Allow(ip) {
				log.Warn().
					Str("client_ip", ip).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
