package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	jobsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invoice_jobs_started_total",
		Help: "Total analysis jobs started",
	})
	jobsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_jobs_finished_total",
		Help: "Analysis jobs reaching a terminal state, by outcome",
	}, []string{"outcome"})
	startFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invoice_job_start_failures_total",
		Help: "Analysis jobs that could not be started",
	})
	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_notifications_total",
		Help: "Queue messages processed, by result",
	}, []string{"result"})
	jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_job_duration_seconds",
		Help:    "Time from upload to terminal extraction status",
		Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})
	uploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_upload_bytes",
		Help:    "Size of accepted invoice uploads",
		Buckets: []float64{10240, 102400, 524288, 1048576, 5242880, 10485760},
	})
)

func init() {
	registry.MustRegister(
		jobsStartedTotal,
		jobsFinishedTotal,
		startFailuresTotal,
		notificationsTotal,
		jobDuration,
		uploadBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncJobStarted increments the started counter.
func IncJobStarted() {
	jobsStartedTotal.Inc()
}

// IncJobFinished records a terminal outcome ("completed", "failed", "duplicate", "orphan").
func IncJobFinished(outcome string) {
	jobsFinishedTotal.WithLabelValues(outcome).Inc()
}

// IncStartFailed increments the start failure counter.
func IncStartFailed() {
	startFailuresTotal.Inc()
}

// IncNotification records a consumed queue message ("handled", "malformed", "retry").
func IncNotification(result string) {
	notificationsTotal.WithLabelValues(result).Inc()
}

// ObserveJobDuration records seconds between upload and terminal status.
func ObserveJobDuration(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	jobDuration.Observe(seconds)
}

// ObserveUploadBytes records the size of an accepted upload.
func ObserveUploadBytes(n int64) {
	uploadBytes.Observe(float64(n))
}

// Registry exposes the private registry for tests.
func Registry() *prometheus.Registry {
	return registry
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
