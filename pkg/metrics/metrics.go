package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RecordRemoteCall records one collaborator call with its duration
func (r *Registry) RecordRemoteCall(operation, status string, duration time.Duration) {
	r.RemoteRequestsTotal.WithLabelValues(operation, status).Inc()
	r.RemoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSimulation counts a simulation outcome
func (r *Registry) RecordSimulation(outcome string) {
	r.SimulationsTotal.WithLabelValues(outcome).Inc()
}

// RecordStaleResponse counts a discarded out-of-order response
func (r *Registry) RecordStaleResponse(kind string) {
	r.StaleResponsesTotal.WithLabelValues(kind).Inc()
}

// RecordSelectionTransition counts a selection event
func (r *Registry) RecordSelectionTransition(event string) {
	r.SelectionTransitionsTotal.WithLabelValues(event).Inc()
}

// RecordHistoryFailure counts a failed history write
func (r *Registry) RecordHistoryFailure() {
	r.HistoryWriteFailuresTotal.Inc()
}

// RecordAuditEvent counts an audited action
func (r *Registry) RecordAuditEvent(action, status string) {
	r.AuditEventsTotal.WithLabelValues(action, status).Inc()
}

// RecordAuditFailure counts an audit event that could not be written
func (r *Registry) RecordAuditFailure() {
	r.AuditWriteFailuresTotal.Inc()
}

// UpdateTopology sets the node and connection gauges
func (r *Registry) UpdateTopology(nodes, connections int) {
	r.NodesTotal.Set(float64(nodes))
	r.ConnectionsTotal.Set(float64(connections))
}

// SetFailureMode mirrors the collaborator's failure flag
func (r *Registry) SetFailureMode(on bool) {
	if on {
		r.FailureMode.Set(1)
	} else {
		r.FailureMode.Set(0)
	}
}

// UpdateSystemMetrics samples runtime statistics
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(ms.Alloc))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
