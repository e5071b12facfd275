package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	m "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"autograder/internal/auth"
)

// RequireAPIToken rejects requests without "Authorization: Bearer <token>".
func RequireAPIToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !auth.TokenMatches(got, token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with zap.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := m.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("request_id", m.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// limiterIdleTTL is how long an IP's limiter survives without requests. After
// that its bucket is full again, so dropping it loses nothing.
const limiterIdleTTL = 10 * time.Minute

type ipLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipLimiters holds one token bucket per client IP and evicts idle ones.
type ipLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
	byIP      map[string]*ipLimiter
}

func newIPLimiters(perMin int) *ipLimiters {
	return &ipLimiters{
		limit: rate.Limit(float64(perMin) / 60),
		burst: max(perMin/2, 5),
		idle:  limiterIdleTTL,
		now:   time.Now,
		byIP:  map[string]*ipLimiter{},
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for k, e := range l.byIP {
			if now.Sub(e.seen) >= l.idle {
				delete(l.byIP, k)
			}
		}
		l.lastSweep = now
	}
	e, ok := l.byIP[ip]
	if !ok {
		e = &ipLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = e
	}
	e.seen = now
	l.mu.Unlock()

	return e.lim.AllowN(now, 1)
}

func (l *ipLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byIP)
}

// RateLimitByIP allows perMin requests per minute per client IP, with a burst
// of half that (at least 5). Run it after middleware.RealIP.
func RateLimitByIP(perMin int) func(http.Handler) http.Handler {
	return rateLimit(newIPLimiters(perMin))
}

func rateLimit(limiters *ipLimiters) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(clientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
