// Package metrics exposes Prometheus instrumentation for the agent.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names used as label values.
const (
	StageTimeRange = "time_range"
	StageQuery     = "query"
	StageExecute   = "execute"
	StageReify     = "reify"
	StageSummary   = "summary"
	StageAnalysis  = "analysis"
	StageAnswer    = "answer"
)

// Metrics holds the collectors registered on one registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pipelineRuns   *prometheus.CounterVec
	stageFallbacks *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates a Metrics bound to a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		pipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "secagent",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		stageFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "secagent",
				Subsystem: "pipeline",
				Name:      "stage_fallbacks_total",
				Help:      "Total number of times a stage returned its deterministic fallback",
			},
			[]string{"stage"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "secagent",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Stage duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~65s
			},
			[]string{"stage"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "secagent",
				Subsystem: "api",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "secagent",
				Subsystem: "api",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"method", "route"},
		),
	}
	reg.MustRegister(m.pipelineRuns, m.stageFallbacks, m.stageDuration, m.httpRequests, m.httpDuration)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PipelineRun counts one finished pipeline run ("assembled" or "failed").
func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

// StageFallback counts one fallback taken by stage.
func (m *Metrics) StageFallback(stage string) {
	if m == nil {
		return
	}
	m.stageFallbacks.WithLabelValues(stage).Inc()
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
