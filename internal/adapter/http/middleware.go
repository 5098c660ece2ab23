package http

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/observability"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

const (
	visitorTTL      = 10 * time.Minute
	cleanupInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter applies a token bucket per client address.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	metrics *observability.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	visitors map[string]*visitor

	stop chan struct{}
	once sync.Once
}

func newClientLimiter(rps float64, burst int, metrics *observability.Metrics, logger *slog.Logger) *clientLimiter {
	l := &clientLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		metrics:  metrics,
		logger:   logger,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *clientLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[addr]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[addr] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func (l *clientLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			for addr, v := range l.visitors {
				if time.Since(v.lastSeen) > visitorTTL {
					delete(l.visitors, addr)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *clientLimiter) close() {
	l.once.Do(func() { close(l.stop) })
}

// middleware rejects clients that exceed their budget with 429.
func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			addr = r.RemoteAddr
		}
		if !l.allow(addr) {
			l.metrics.APIThrottled.Inc()
			l.logger.Warn("api rate limit exceeded", "client", addr, "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request at debug level, and at warn for
// server errors.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
