// Package metrics defines the Prometheus collectors for the lessons service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sgx-labs/mobilelessons/internal/content"
)

// Metrics holds every collector on an isolated registry so tests and
// multiple servers in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	IndexBuildsTotal          *prometheus.CounterVec
	IndexBuildDurationSeconds prometheus.Histogram
	LessonsIndexed            *prometheus.GaugeVec

	SearchQueriesTotal *prometheus.CounterVec
	MCPToolCallsTotal  *prometheus.CounterVec
	GuardFlaggedTotal  *prometheus.CounterVec

	BuildInfo *prometheus.GaugeVec
}

// New registers all collectors. version and goVersion label the
// lessons_info gauge.
func New(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessons_http_requests_total",
				Help: "Total number of HTTP API requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lessons_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessons_index_builds_total",
				Help: "Total number of index builds by result.",
			},
			[]string{"result"},
		),
		IndexBuildDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lessons_index_build_duration_seconds",
				Help:    "Duration of index builds in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
		),
		LessonsIndexed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lessons_indexed",
				Help: "Number of lessons in the current index by platform.",
			},
			[]string{"platform"},
		),

		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessons_search_queries_total",
				Help: "Total number of search queries by surface.",
			},
			[]string{"surface"},
		),
		MCPToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessons_mcp_tool_calls_total",
				Help: "Total number of MCP tool calls by tool and result.",
			},
			[]string{"tool", "result"},
		),
		GuardFlaggedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessons_guard_flagged_total",
				Help: "Total number of lesson bodies withheld by the content guard.",
			},
			[]string{"platform"},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lessons_info",
				Help: "Build information for the running lessons instance.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.IndexBuildsTotal,
		m.IndexBuildDurationSeconds,
		m.LessonsIndexed,
		m.SearchQueriesTotal,
		m.MCPToolCallsTotal,
		m.GuardFlaggedTotal,
		m.BuildInfo,
	)

	// always 1, labels carry the data
	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// ObserveIndex records a build result and, on success, the per-platform
// lesson counts.
func (m *Metrics) ObserveIndex(counts map[content.Platform]int, seconds float64, err error) {
	if m == nil {
		return
	}
	m.IndexBuildDurationSeconds.Observe(seconds)
	if err != nil {
		m.IndexBuildsTotal.WithLabelValues("error").Inc()
		return
	}
	m.IndexBuildsTotal.WithLabelValues("ok").Inc()
	for _, p := range content.Platforms() {
		m.LessonsIndexed.WithLabelValues(string(p)).Set(float64(counts[p]))
	}
}

// Handler returns an http.Handler that serves the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
