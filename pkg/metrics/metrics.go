package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arnavshah/study-planner-api/pkg/models"
)

// Recorder exposes allocation run metrics
type Recorder struct {
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	placements prometheus.Counter
	failures   *prometheus.CounterVec
	warnings   *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewRecorder registers the planner collectors on a fresh registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "study_planner_allocation_runs_total",
			Help: "Allocation runs by outcome.",
		}, []string{"outcome"}),
		placements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "study_planner_placements_total",
			Help: "Content units placed on the calendar.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "study_planner_failures_total",
			Help: "Content units left unplaced, by reason.",
		}, []string{"type"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "study_planner_warnings_total",
			Help: "Warnings attached to runs, by type.",
		}, []string{"type"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "study_planner_allocation_duration_seconds",
			Help:    "Wall time of one allocation run.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	r.registry.MustRegister(r.runs, r.placements, r.failures, r.warnings, r.duration)
	return r
}

// ObserveRun records the outcome of a run. A nil report counts as a rejected run.
func (r *Recorder) ObserveRun(report *models.AllocationReport, warnings []models.Warning, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.duration.Observe(elapsed.Seconds())
	if report == nil {
		r.runs.WithLabelValues("rejected").Inc()
		return
	}
	r.runs.WithLabelValues("completed").Inc()
	r.placements.Add(float64(len(report.Entries)))
	for _, f := range report.Failures {
		r.failures.WithLabelValues(string(f.Type)).Inc()
	}
	for _, w := range warnings {
		r.warnings.WithLabelValues(string(w.Type)).Inc()
	}
}

// Handler serves the registry in the prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
