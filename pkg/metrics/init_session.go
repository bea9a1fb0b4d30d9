package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSessionMetrics() {
	r.SimulationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "crclink_simulations_total",
			Help: "Simulations by outcome (lost, clean, detected, undetected, rejected, failed)",
		},
		[]string{"outcome"},
	)

	r.StaleResponsesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "crclink_stale_responses_total",
			Help: "Responses discarded because a newer request of the same kind was issued",
		},
		[]string{"kind"},
	)

	r.SelectionTransitionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "crclink_selection_transitions_total",
			Help: "Selection state machine transitions by event",
		},
		[]string{"event"},
	)

	r.NodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "crclink_nodes",
			Help: "Nodes in the registry after the last applied refresh",
		},
	)

	r.ConnectionsTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "crclink_connections",
			Help: "Connections drawn on the canvas",
		},
	)

	r.FailureMode = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "crclink_collaborator_failure_mode",
			Help: "1 when the collaborator's simulated failure mode is on",
		},
	)

	r.HistoryWriteFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "crclink_history_write_failures_total",
			Help: "Transmission history writes that failed",
		},
	)
}
