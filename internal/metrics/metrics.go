// Package metrics exposes Prometheus counters for track runs and the HTTP
// surface of the daemon.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcal_runs_total",
			Help: "Total number of track runs by result.",
		},
		[]string{"result"},
	)

	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcal_samples_total",
			Help: "Total number of samples computed, by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satcal_run_duration_seconds",
			Help:    "Wall time of completed track runs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcal_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satcal_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(samplesTotal)
	prometheus.MustRegister(runDurationSeconds)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun counts a completed run. failures maps kind names to counts.
func RecordRun(d time.Duration, ok int, failures map[string]int) {
	runsTotal.WithLabelValues("completed").Inc()
	runDurationSeconds.Observe(d.Seconds())
	samplesTotal.WithLabelValues("ok").Add(float64(ok))
	for kind, n := range failures {
		samplesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordRejected counts a request refused before any work was done.
func RecordRejected() {
	runsTotal.WithLabelValues("rejected").Inc()
}

// RecordAborted counts a run stopped by cancellation.
func RecordAborted() {
	runsTotal.WithLabelValues("aborted").Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack passes through so websocket upgrades work behind the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}

var knownRoutes = map[string]bool{
	"/healthz":     true,
	"/metrics":     true,
	"/ws":          true,
	"/api/status":  true,
	"/api/version": true,
	"/api/track":   true,
	"/api/config":  true,
	"/api/reload":  true,
}

// normalizeRoute keeps the label set bounded: unknown paths collapse to
// "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}
