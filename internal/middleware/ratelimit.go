package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/restrack/restrack-ai/internal/metrics"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	limit    rate.Limit
	burst    int
	exempt   map[string]bool
	stopOnce sync.Once

	cleanupTicker *time.Ticker
	done          chan struct{}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained and
// burst requests at once per client. Requests to exemptPaths are never limited.
func NewRateLimiter(requestsPerSecond float64, burst int, exemptPaths ...string) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		clients:       make(map[string]*client),
		limit:         rate.Limit(requestsPerSecond),
		burst:         burst,
		exempt:        make(map[string]bool, len(exemptPaths)),
		cleanupTicker: time.NewTicker(5 * time.Minute),
		done:          make(chan struct{}),
	}
	for _, p := range exemptPaths {
		rl.exempt[p] = true
	}

	// Cleanup stale entries every 5 minutes
	go rl.cleanup()

	return rl
}

// Middleware returns an HTTP middleware that enforces rate limiting.
// Rejected requests get 429 with a JSON body and Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		lim := rl.limiterFor(ClientIP(r))
		reservation := lim.Reserve()
		if !reservation.OK() {
			rl.reject(w, time.Second)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			rl.reject(w, delay)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, int(lim.Tokens()))))
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) reject(w http.ResponseWriter, delay time.Duration) {
	metrics.RateLimited.Inc()
	retryAfter := int(delay.Seconds()) + 1
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "Too many requests. Please retry after " + strconv.Itoa(retryAfter) + " seconds.",
	})
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// cleanup removes stale client entries
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, c := range rl.clients {
				// Remove clients that haven't made requests in 10 minutes
				if now.Sub(c.lastSeen) > 10*time.Minute {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.done)
	})
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the
// connection's remote host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
