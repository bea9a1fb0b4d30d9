package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAuditMetrics() {
	r.AuditEventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "crclink_audit_events_total",
			Help: "Audited operator actions by action and status",
		},
		[]string{"action", "status"},
	)

	r.AuditWriteFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "crclink_audit_write_failures_total",
			Help: "Audit events that could not be written",
		},
	)
}
