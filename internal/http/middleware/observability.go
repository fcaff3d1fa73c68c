package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"parcel-dispatch/internal/logx"
)

// Observability records per-route request counters and latencies and writes
// one access log line per request.
type Observability struct {
	logger   logx.Logger
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewObservability creates the HTTP collectors and registers them on reg.
func NewObservability(logger logx.Logger, reg prometheus.Registerer) (*Observability, error) {
	if logger == nil {
		logger = logx.Nop()
	}
	o := &Observability{
		logger: logger,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{o.requests, o.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

// Handler returns chi-style middleware.
func (o *Observability) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// label by route pattern, raw paths carry ids
		path := pathPattern(r)
		took := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		o.requests.WithLabelValues(r.Method, path, code).Inc()
		o.duration.WithLabelValues(r.Method, path, code).Observe(took.Seconds())

		fields := []logx.Field{
			logx.String("method", r.Method),
			logx.String("path", path),
			logx.Int("status", status),
			logx.Duration("duration", took),
		}
		if id := chimw.GetReqID(r.Context()); id != "" {
			fields = append(fields, logx.String("request_id", id))
		}
		if status >= http.StatusInternalServerError {
			o.logger.Warn("http request", fields...)
			return
		}
		o.logger.Info("http request", fields...)
	})
}

func pathPattern(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
