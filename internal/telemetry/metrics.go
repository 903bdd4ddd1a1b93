// Package telemetry provides Prometheus instrumentation for the
// evaluation service: request metrics, evaluation outcomes and snapshot
// refresh health.
package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagvane_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flagvane_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// EvaluationsTotal counts evaluations by terminal reason code.
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flagvane_evaluations_total",
		Help: "Total flag evaluations by reason",
	}, []string{"reason"})

	// EvaluationDuration observes single-evaluation latency.
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flagvane_evaluation_duration_seconds",
		Help:    "Flag evaluation latency in seconds",
		Buckets: []float64{.000001, .00001, .0001, .001, .01, .1},
	})

	// RefreshTotal counts snapshot refresh outcomes (success, failure,
	// skipped).
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flagvane_snapshot_refresh_total",
		Help: "Snapshot refresh attempts by outcome",
	}, []string{"outcome"})

	// RefreshDuration observes full load-build-publish cycles.
	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flagvane_snapshot_refresh_duration_seconds",
		Help:    "Snapshot refresh duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SnapshotFlags tracks the number of flags in the published snapshot.
	SnapshotFlags = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flagvane_snapshot_flags",
		Help: "Number of flags currently in the in-memory snapshot",
	})

	// SnapshotTimestamp is the unix time the published snapshot was built.
	SnapshotTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flagvane_snapshot_timestamp_seconds",
		Help: "Unix timestamp of the currently published snapshot",
	})
)

// Init registers all collectors with the default registry. Call once at
// process startup; tests that exercise instrumented code paths without
// Init still work because the collectors are package-level values.
func Init() {
	prometheus.MustRegister(
		httpReqs, httpDur,
		EvaluationsTotal, EvaluationDuration,
		RefreshTotal, RefreshDuration,
		SnapshotFlags, SnapshotTimestamp,
	)
}

// Middleware records per-route request counts and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// get route pattern if available
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
