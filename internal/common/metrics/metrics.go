// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_route_total",
			Help: "Messages routed, by serving lane and detected intent",
		},
		[]string{"lane", "intent"},
	)

	RouteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_route_duration_seconds",
			Help:    "End-to-end routing latency per lane",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, .8, 1, 1.5, 2.5, 5, 10},
		},
		[]string{"lane"},
	)

	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_fallback_total",
			Help: "Messages escalated to the orchestrator, by reason",
		},
		[]string{"reason"},
	)

	SLABreaches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_sla_breaches_total",
			Help: "Turns whose total latency exceeded the configured SLA",
		},
		[]string{"lane"},
	)

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_tool_executions_total",
			Help: "Direct-lane tool executions by capability and outcome",
		},
		[]string{"capability", "outcome"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_tool_duration_seconds",
			Help:    "Tool execution latency per capability",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, .8, 1},
		},
		[]string{"capability"},
	)

	// CircuitState is 0 closed, 1 open, 2 half-open.
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatcher_circuit_state",
			Help: "Observed circuit state per capability",
		},
		[]string{"capability"},
	)

	CatalogRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_catalog_refresh_total",
			Help: "Catalog table refreshes by table and source",
		},
		[]string{"table", "source"},
	)
)
