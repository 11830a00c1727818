package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "canvasmesh"

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultEmpty    = "empty"
	ResultSnapshot = "snapshot"
	ResultAccepted = "accepted"
	ResultDropped  = "dropped"
	ResultFailed   = "failed"
)

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Admission metrics
	SessionsAdmitted   prometheus.Counter
	AdmissionsRejected *prometheus.CounterVec

	// Room lifecycle metrics
	Hydrations        *prometheus.CounterVec
	HydrationDuration prometheus.Histogram

	// Persistence metrics
	SnapshotWrites        *prometheus.CounterVec
	SnapshotWriteDuration prometheus.Histogram
	SnapshotBytes         prometheus.Histogram

	// Diagnostics metrics
	ErrorReports *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		SessionsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_admitted_total",
			Help:      "Connections admitted and upgraded",
		}),
		AdmissionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_rejected_total",
			Help:      "Connection attempts rejected before or during upgrade",
		}, []string{"reason"}),

		Hydrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hydrations_total",
			Help:      "Room hydrations by outcome (empty, snapshot, error)",
		}, []string{"result"}),
		HydrationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hydration_duration_seconds",
			Help:      "Time to load and rebuild a room",
			Buckets:   prometheus.DefBuckets,
		}),

		SnapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_writes_total",
			Help:      "Room snapshot writes by outcome",
		}, []string{"result"}),
		SnapshotWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_write_duration_seconds",
			Help:      "Time to serialize and store a room snapshot",
			Buckets:   prometheus.DefBuckets,
		}),
		SnapshotBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Size of written room snapshots",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),

		ErrorReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "error_reports_total",
			Help:      "Client error reports by outcome (accepted, dropped, failed)",
		}, []string{"result"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SessionsAdmitted,
		r.AdmissionsRejected,
		r.Hydrations,
		r.HydrationDuration,
		r.SnapshotWrites,
		r.SnapshotWriteDuration,
		r.SnapshotBytes,
		r.ErrorReports,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

// Registerer exposes the underlying registry for components that
// register their own collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveSince records the seconds elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
