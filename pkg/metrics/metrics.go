// Package metrics holds the Prometheus collectors of the file manager.
// Every collector lives on Registry, which Handler serves:
//
//	r.Use(metrics.Middleware())
//	r.Handle("/metrics", "metrics", metrics.Handler())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is a private registry so tests and embedders never collide with
// prometheus.DefaultRegisterer.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func opts(subsystem, name, help string) prometheus.Opts {
	return prometheus.Opts{Namespace: "filemanager", Subsystem: subsystem, Name: name, Help: help}
}

func histogram(o prometheus.Opts, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: o.Namespace, Subsystem: o.Subsystem, Name: o.Name, Help: o.Help,
		Buckets: buckets,
	}
}

// HTTP. Routes are chi patterns so file keys never become label values.
var (
	RequestDuration = factory.NewHistogramVec(
		histogram(opts("http", "request_duration_seconds", "Duration of HTTP requests in seconds."), prometheus.DefBuckets),
		[]string{"method", "route", "status"},
	)
	ResponseSize = factory.NewHistogramVec(
		histogram(opts("http", "response_size_bytes", "Bytes written per HTTP response."), prometheus.ExponentialBuckets(256, 8, 8)),
		[]string{"route"},
	)
	RequestsInFlight = factory.NewGauge(prometheus.GaugeOpts(
		opts("http", "requests_in_flight", "HTTP requests currently being served."),
	))
)

// Adapter calls, by mode, operation and outcome (ok, user_error or error).
var AdapterOps = factory.NewHistogramVec(
	histogram(opts("adapter", "operation_duration_seconds", "Duration of adapter operations in seconds."),
		[]float64{.001, .005, .01, .025, .05, .1, .5, 1, 5}),
	[]string{"mode", "operation", "outcome"},
)

// Streaming gateway.
var (
	StreamResponses = factory.NewCounterVec(prometheus.CounterOpts(
		opts("gateway", "responses_total", "Gateway responses by disposition and status."),
	), []string{"disposition", "status"})
	StreamBytes = factory.NewCounterVec(prometheus.CounterOpts(
		opts("gateway", "bytes_total", "Bytes written by the streaming gateway."),
	), []string{"disk"})
)

// CacheLookups counts folder tree cache lookups by driver and result (hit or
// miss).
var CacheLookups = factory.NewCounterVec(prometheus.CounterOpts(
	opts("cache", "lookups_total", "Folder tree cache lookups."),
), []string{"driver", "result"})

// ObserveAdapter records one adapter call that started at start.
func ObserveAdapter(mode, op, outcome string, start time.Time) {
	AdapterOps.WithLabelValues(mode, op, outcome).Observe(time.Since(start).Seconds())
}

// ObserveCache counts a lookup against driver.
func ObserveCache(driver string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(driver, result).Inc()
}

// meteredWriter captures the status and body size. Flush passes through so
// streamed bodies are not buffered.
type meteredWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *meteredWriter) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *meteredWriter) Write(p []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(p)
	m.bytes += n
	return n, err
}

func (m *meteredWriter) Flush() {
	if f, ok := m.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (m *meteredWriter) Unwrap() http.ResponseWriter { return m.ResponseWriter }

// Middleware observes every request once it returns, panics included.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			mw := &meteredWriter{ResponseWriter: w}
			RequestsInFlight.Inc()
			defer func() {
				RequestsInFlight.Dec()
				route := "unmatched"
				if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				status := mw.status
				if status == 0 {
					status = http.StatusOK
				}
				RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
				ResponseSize.WithLabelValues(route).Observe(float64(mw.bytes))
			}()
			next.ServeHTTP(mw, r)
		})
	}
}

// Handler serves Registry in the Prometheus text and OpenMetrics formats.
func Handler() http.HandlerFunc {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}).ServeHTTP
}
