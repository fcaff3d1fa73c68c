package ratelimit

import (
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"parcel-dispatch/internal/auth"
	"parcel-dispatch/internal/logx"
)

// Middleware rejects clients that exceed their request budget with 429.
// Authenticated callers are keyed by user, anonymous ones by IP.
type Middleware struct {
	logger  logx.Logger
	counter prometheus.Counter
	limiter Limiter
	class   string
}

// New creates a new Middleware for the default request class.
func New(logger logx.Logger, counter prometheus.Counter, limiter Limiter) *Middleware {
	if logger == nil {
		logger = logx.Nop()
	}
	if limiter == nil {
		limiter = NopLimiter{}
	}
	return &Middleware{
		logger:  logger,
		counter: counter,
		limiter: limiter,
		class:   "api",
	}
}

// Class returns a middleware that shares logger and counter but keeps its
// own budget, e.g. for PIN submissions.
func (m *Middleware) Class(name string, limiter Limiter) *Middleware {
	if limiter == nil {
		limiter = NopLimiter{}
	}
	cp := *m
	cp.class = name
	cp.limiter = limiter
	return &cp
}

// Handler returns chi-style middleware.
func (m *Middleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := m.class + ":" + clientKey(r)
			if m.limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			if m.counter != nil {
				m.counter.Inc()
			}
			m.logger.Warn("rate limit exceeded",
				logx.String("key", key),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := io.WriteString(w, `{"error":"too many requests","kind":"rate_limited"}`); err != nil {
				// client went away
				m.logger.Debug("rate limit response write failed",
					logx.String("key", key),
					logx.Any("err", err),
				)
			}
		})
	}
}

func clientKey(r *http.Request) string {
	if a, ok := auth.ActorFrom(r.Context()); ok {
		return "user:" + string(a.Role) + ":" + strconv.FormatInt(a.ID, 10)
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
