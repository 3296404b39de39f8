// Package metrics holds the Prometheus collectors shared by the server and worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of requests",
		},
		[]string{"service", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)

	// WebhookEventsTotal counts provider webhook events by type and outcome.
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of video provider webhook events",
		},
		[]string{"type", "outcome"},
	)

	// WorkflowStepsTotal counts workflow steps by workflow, step and outcome (ok, replayed, failed).
	WorkflowStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_steps_total",
			Help: "Total number of workflow steps executed",
		},
		[]string{"workflow", "step", "outcome"},
	)

	WorkflowJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_jobs_total",
			Help: "Total number of workflow jobs dispatched by the worker",
		},
		[]string{"workflow", "status"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of video lifecycle events published",
		},
		[]string{"driver", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		WebhookEventsTotal,
		WorkflowStepsTotal,
		WorkflowJobsTotal,
		EventsPublishedTotal,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on its own port. Used by the worker, which has no HTTP router.
func StartServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}

// RecordRequest records one request observation.
func RecordRequest(service, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(service, method, status).Inc()
	RequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}
