// Package metrics collects run counters. The worker is a batch process, so
// the registry is written to a node-exporter textfile instead of served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"citypaper/internal/apperrors"
)

type Metrics struct {
	Registry *prometheus.Registry

	RenderJobs       *prometheus.CounterVec
	RenderAttempts   prometheus.Counter
	RenderDuration   *prometheus.HistogramVec
	CitiesProcessed  *prometheus.CounterVec
	PublishFailures  *prometheus.CounterVec
	ArtifactsCreated prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RenderJobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citypaper_render_jobs_total",
				Help: "Render jobs by final status",
			},
			[]string{"format", "status"},
		),
		RenderAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "citypaper_render_attempts_total",
			Help: "Renderer invocations including retries",
		}),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "citypaper_render_duration_seconds",
				Help:    "Wall time of a render job including retries",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"format"},
		),
		CitiesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citypaper_cities_total",
				Help: "Cities processed by outcome",
			},
			[]string{"outcome"},
		),
		PublishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citypaper_publish_failures_total",
				Help: "Publish step failures by error code",
			},
			[]string{"error_code"},
		),
		ArtifactsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "citypaper_artifacts_total",
			Help: "Poster files collected",
		}),
	}
}

// ObserveRender records one finished render job. A nil receiver is a no-op.
func (m *Metrics) ObserveRender(format string, succeeded bool, attempts int, d time.Duration) {
	if m == nil {
		return
	}
	status := "succeeded"
	if !succeeded {
		status = "failed"
	}
	m.RenderJobs.WithLabelValues(format, status).Inc()
	m.RenderAttempts.Add(float64(attempts))
	m.RenderDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (m *Metrics) ObserveArtifacts(n int) {
	if m == nil {
		return
	}
	m.ArtifactsCreated.Add(float64(n))
}

// ObserveCity records the outcome of a city: "succeeded", "failed" or "skipped".
func (m *Metrics) ObserveCity(outcome string) {
	if m == nil {
		return
	}
	m.CitiesProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePublishFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.PublishFailures.WithLabelValues(string(apperrors.CodeOf(err))).Inc()
}

// WriteTextfile writes the registry in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
