package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter throttles position-report traffic per source IP with a
// fixed-window token bucket. Whitelisted IPs (depot gateways, test
// rigs) bypass it.
type Limiter struct {
	mu        sync.Mutex
	sources   map[string]*bucket
	rate      int
	window    time.Duration
	cleanup   time.Duration
	whitelist map[string]struct{}
	logger    *slog.Logger
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

func NewLimiter(rate int, window time.Duration, whitelist []string, logger *slog.Logger) *Limiter {
	wl := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			wl[ip] = struct{}{}
		}
	}

	l := &Limiter{
		sources:   make(map[string]*bucket),
		rate:      rate,
		window:    window,
		cleanup:   window * 2,
		whitelist: wl,
		logger:    logger.With("component", "rate_limiter"),
	}

	go l.cleanupLoop()

	return l
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for ip, b := range l.sources {
			if now.Sub(b.lastReset) > l.cleanup {
				delete(l.sources, ip)
			}
		}
		l.mu.Unlock()
	}
}

// Allow consumes one token for the IP, refilling when the window rolls.
func (l *Limiter) Allow(ip string) bool {
	if _, ok := l.whitelist[ip]; ok {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.sources[ip]

	if !exists {
		l.sources[ip] = &bucket{tokens: l.rate - 1, lastReset: now}
		return true
	}

	if now.Sub(b.lastReset) > l.window {
		b.tokens = l.rate - 1
		b.lastReset = now
		return true
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

// Middleware rejects over-limit requests with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.Allow(ip) {
			l.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
