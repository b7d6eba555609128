// Package metrics exposes Prometheus collectors for settlement and HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "casino"

// Label names.
const (
	LabelGame    = "game"
	LabelOutcome = "outcome"
	LabelFrom    = "from"
	LabelTo      = "to"
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
)

// Outcome label values.
const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomePush = "push"
)

// Settlement metrics
var (
	RoundsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_settled_total",
			Help:      "Settled rounds by game and outcome.",
		},
		[]string{LabelGame, LabelOutcome},
	)

	Wagered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wagered_total",
			Help:      "Total stake debited, including extra stake.",
		},
		[]string{LabelGame},
	)

	Paid = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_total",
			Help:      "Total payout credited.",
		},
		[]string{LabelGame},
	)

	PayoutFactor = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payout_factor",
			Help:      "Payout divided by total stake for staked rounds.",
			Buckets:   []float64{0, 0.5, 1, 1.5, 2, 3, 5, 10, 50, 100, 1000},
		},
		[]string{LabelGame},
	)

	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Settlement state machine transitions.",
		},
		[]string{LabelGame, LabelFrom, LabelTo},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status.",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		},
	)
)
