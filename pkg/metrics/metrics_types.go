package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the console
type Registry struct {
	// Collaborator calls
	RemoteRequestsTotal   *prometheus.CounterVec
	RemoteRequestDuration *prometheus.HistogramVec

	// Session
	SimulationsTotal          *prometheus.CounterVec
	StaleResponsesTotal       *prometheus.CounterVec
	SelectionTransitionsTotal *prometheus.CounterVec
	NodesTotal                prometheus.Gauge
	ConnectionsTotal          prometheus.Gauge
	FailureMode               prometheus.Gauge
	HistoryWriteFailuresTotal prometheus.Counter

	// Audit trail
	AuditEventsTotal        *prometheus.CounterVec
	AuditWriteFailuresTotal prometheus.Counter

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initRemoteMetrics()
	r.initSessionMetrics()
	r.initAuditMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
