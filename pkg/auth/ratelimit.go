package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// VisitorLimiter enforces per-actor rate limiting at the HTTP layer. Each
// actor gets an independent token bucket; idle buckets are dropped after
// an inactivity window so the map stays bounded.
type VisitorLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewVisitorLimiter creates a limiter allowing rps requests per second per
// actor, with the given burst.
func NewVisitorLimiter(rps float64, burst int) *VisitorLimiter {
	l := &VisitorLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
	go l.cleanup()
	return l
}

func (l *VisitorLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		for id, v := range l.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(l.visitors, id)
			}
		}
		l.mu.Unlock()
	}
}

func (l *VisitorLimiter) allow(actorID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[actorID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[actorID] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// RateLimitMiddleware limits requests per authenticated actor, falling back
// to the remote address for unauthenticated requests. On limit exceeded it
// returns 429 with a Retry-After header. A nil limiter disables limiting.
func RateLimitMiddleware(limiter *VisitorLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			actorID := r.RemoteAddr
			if principal, err := GetPrincipal(r.Context()); err == nil {
				actorID = principal.UserID
			}

			if !limiter.allow(actorID) {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
