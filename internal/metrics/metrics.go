package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "report",
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Total number of report generation jobs accepted",
		},
	)
	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "report",
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total number of report generation jobs that reached a terminal state",
		},
		[]string{"status"},
	)
	aiAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "report",
			Subsystem: "ai",
			Name:      "attempts_total",
			Help:      "Total number of AI provider calls made by the report worker",
		},
		[]string{"outcome"},
	)
	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "report",
			Subsystem: "job",
			Name:      "duration_seconds",
			Help:      "Wall time from worker pickup to terminal state",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 180, 300, 420},
		},
	)
)

var registerReportMetrics sync.Once

func init() {
	registerReportMetrics.Do(func() {
		prometheus.MustRegister(jobsSubmitted, jobsFinished, aiAttempts, jobDuration)
	})
}

func JobSubmitted() {
	jobsSubmitted.Inc()
}

func JobFinished(status string, took time.Duration) {
	jobsFinished.WithLabelValues(status).Inc()
	jobDuration.Observe(took.Seconds())
}

func AIAttempt(outcome string) {
	aiAttempts.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
