// Package metrics exposes pipeline run and stage metrics to prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	LabelStatus = "status"
	LabelStage  = "stage"
)

type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// New registers the metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rolling",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{LabelStatus}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rolling",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 3, 8), // top bucket ~= 18 minutes
		}, []string{LabelStage, LabelStatus}),
	}
	m.registry.MustRegister(m.runs, m.stageDuration)
	return m
}

func (m *Metrics) RunFinished(status string) {
	m.runs.WithLabelValues(status).Inc()
}

func (m *Metrics) StageFinished(stage, status string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
