// Package metrics registers the Prometheus metrics used by the router.
// Collectors are registered with the default registry on import, before
// the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeRejected = "rejected"
)

// UnknownProfile is the profile label for names the loaded policy does not
// define. Callers choose the profile, so the raw name is never a label.
const UnknownProfile = "unknown"

// Route-level counters and histograms.
var (
	// RoutesTotal counts routed tasks labelled by profile (or UnknownProfile),
	// provider, model and outcome ("ok", "degraded", "rejected").
	RoutesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_routes_total",
			Help: "Total number of tasks routed.",
		},
		[]string{"profile", "provider", "model", "outcome"},
	)

	// RouteDuration observes end-to-end routing latency in seconds, backend
	// call included.
	RouteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_route_duration_seconds",
			Help:    "End-to-end route duration in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	// TokensPrompt counts estimated prompt tokens.
	TokensPrompt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_tokens_prompt_total",
			Help: "Estimated prompt tokens of routed tasks.",
		},
		[]string{"provider", "model"},
	)

	// TokensOutput counts estimated output tokens.
	TokensOutput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_tokens_output_total",
			Help: "Estimated output tokens of routed tasks.",
		},
		[]string{"provider", "model"},
	)

	// EstimatedCostCents accumulates the estimated spend in US cents.
	EstimatedCostCents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_estimated_cost_cents_total",
			Help: "Estimated cost of routed tasks in US cents.",
		},
		[]string{"provider", "model"},
	)

	// DenylistHits counts advisory denylist matches by pattern identifier.
	DenylistHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_denylist_hits_total",
			Help: "Denylist pattern matches on sanitized tasks.",
		},
		[]string{"pattern"},
	)

	// BackendErrors counts degraded completions by provider and error type
	// ("missing_key", "timeout", "api_error", "no_backend", "circuit_open",
	// "exception").
	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_backend_errors_total",
			Help: "Total completion backend errors by type.",
		},
		[]string{"provider", "error_type"},
	)

	// PolicyReloads counts policy file reloads by result ("ok", "error").
	PolicyReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_policy_reloads_total",
			Help: "Policy file reloads by result.",
		},
		[]string{"result"},
	)
)
