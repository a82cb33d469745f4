package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter bookkeeping bounds.
const (
	limiterIdleTTL   = 10 * time.Minute
	limiterSweepSize = 10000
)

// RateLimitMiddleware applies a per-client token bucket to requests under
// prefix. Paths in exempt bypass the limiter.
func RateLimitMiddleware(prefix string, rps float64, burst int, exempt []string) Middleware {
	set := newLimiterSet(rate.Limit(rps), burst)
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}

	return onlyUnder(prefix, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if !set.allow(clientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				RateLimited(w, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

// limiterSet holds one token bucket per client address.
type limiterSet struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		clients: make(map[string]*clientLimiter),
		limit:   limit,
		burst:   burst,
	}
}

func (s *limiterSet) allow(addr string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[addr]
	if !ok {
		if len(s.clients) >= limiterSweepSize {
			s.sweepLocked(now)
		}
		c = &clientLimiter{bucket: rate.NewLimiter(s.limit, s.burst)}
		s.clients[addr] = c
	}
	c.lastSeen = now
	return c.bucket.AllowN(now, 1)
}

// sweepLocked drops clients idle longer than limiterIdleTTL.
func (s *limiterSet) sweepLocked(now time.Time) {
	for addr, c := range s.clients {
		if now.Sub(c.lastSeen) > limiterIdleTTL {
			delete(s.clients, addr)
		}
	}
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// clientIP prefers X-Real-IP, then the first X-Forwarded-For hop, then the
// connection address.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
