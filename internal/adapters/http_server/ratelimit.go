package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"bookshelf/internal/adapters/observability"
)

// Limiter decides whether one more write is allowed for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-key token bucket kept in process. Keys idle for
// longer than ttl are dropped on a later call.
type MemoryLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		visitors: map[string]*visitor{},
		limit:    rate.Limit(rps),
		burst:    burst,
		ttl:      3 * time.Minute,
		now:      time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > m.ttl {
		for k, v := range m.visitors {
			if now.Sub(v.lastSeen) > m.ttl {
				delete(m.visitors, k)
			}
		}
		m.lastSweep = now
	}

	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1), nil
}

// ThrottleWrites limits mutating requests per authenticated user. Reads pass
// through. A failing backend lets the request through.
func ThrottleWrites(l Limiter, backend string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			uid, ok := UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := l.Allow(r.Context(), strconv.FormatInt(uid, 10))
			switch {
			case err != nil:
				observability.ObserveLimiter(backend, "error")
				log.Warn().Err(err).Str("backend", backend).Msg("write limiter unavailable")
			case !allowed:
				observability.ObserveLimiter(backend, "deny")
				log.Debug().Int64("user_id", uid).Str("path", r.URL.Path).Msg("write rate limit exceeded")
				w.Header().Set("Retry-After", "1")
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "write rate limit exceeded")
				return
			default:
				observability.ObserveLimiter(backend, "allow")
			}
			next.ServeHTTP(w, r)
		})
	}
}
