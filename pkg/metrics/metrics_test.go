package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.RemoteRequestsTotal == nil {
		t.Error("RemoteRequestsTotal not initialized")
	}
	if r.SimulationsTotal == nil {
		t.Error("SimulationsTotal not initialized")
	}
	if r.NodesTotal == nil {
		t.Error("NodesTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestRecordAudit(t *testing.T) {
	r := NewRegistry()

	r.RecordAuditEvent("shutdown_node", "success")
	r.RecordAuditEvent("shutdown_node", "success")
	r.RecordAuditEvent("simulate", "failure")
	r.RecordAuditFailure()

	if got := counterValue(t, r.AuditEventsTotal.WithLabelValues("shutdown_node", "success")); got != 2 {
		t.Errorf("shutdown_node/success = %v, want 2", got)
	}
	if got := counterValue(t, r.AuditEventsTotal.WithLabelValues("simulate", "failure")); got != 1 {
		t.Errorf("simulate/failure = %v, want 1", got)
	}
	if got := counterValue(t, r.AuditWriteFailuresTotal); got != 1 {
		t.Errorf("write failures = %v, want 1", got)
	}
}

func TestRecordRemoteCall(t *testing.T) {
	r := NewRegistry()

	r.RecordRemoteCall("simulate", "200", 100*time.Millisecond)
	r.RecordRemoteCall("simulate", "200", 200*time.Millisecond)
	r.RecordRemoteCall("simulate", "transport_error", 5*time.Millisecond)

	ok, err := r.RemoteRequestsTotal.GetMetricWithLabelValues("simulate", "200")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if v := counterValue(t, ok); v != 2 {
		t.Errorf("200 counter = %v, want 2", v)
	}

	failed, _ := r.RemoteRequestsTotal.GetMetricWithLabelValues("simulate", "transport_error")
	if v := counterValue(t, failed); v != 1 {
		t.Errorf("transport_error counter = %v, want 1", v)
	}

	histogram, err := r.RemoteRequestDuration.GetMetricWithLabelValues("simulate")
	if err != nil {
		t.Fatalf("Failed to get histogram: %v", err)
	}
	var metric dto.Metric
	if err := histogram.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("Sample count = %v, want 3", metric.Histogram.GetSampleCount())
	}
	sum := metric.Histogram.GetSampleSum()
	if sum < 0.30 || sum > 0.31 {
		t.Errorf("Sample sum = %v, want ~0.305", sum)
	}
}

func TestSessionCounters(t *testing.T) {
	r := NewRegistry()

	r.RecordSimulation("clean")
	r.RecordSimulation("clean")
	r.RecordSimulation("detected")
	r.RecordStaleResponse("refresh")
	r.RecordSelectionTransition("pair_completed")
	r.RecordHistoryFailure()

	tests := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"clean", r.SimulationsTotal.WithLabelValues("clean"), 2},
		{"detected", r.SimulationsTotal.WithLabelValues("detected"), 1},
		{"lost", r.SimulationsTotal.WithLabelValues("lost"), 0},
		{"stale refresh", r.StaleResponsesTotal.WithLabelValues("refresh"), 1},
		{"pair", r.SelectionTransitionsTotal.WithLabelValues("pair_completed"), 1},
		{"history", r.HistoryWriteFailuresTotal, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counterValue(t, tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGaugeMetrics(t *testing.T) {
	r := NewRegistry()

	r.UpdateTopology(5, 2)
	if v := gaugeValue(t, r.NodesTotal); v != 5 {
		t.Errorf("NodesTotal = %v, want 5", v)
	}
	if v := gaugeValue(t, r.ConnectionsTotal); v != 2 {
		t.Errorf("ConnectionsTotal = %v, want 2", v)
	}

	r.SetFailureMode(true)
	if v := gaugeValue(t, r.FailureMode); v != 1 {
		t.Errorf("FailureMode = %v, want 1", v)
	}
	r.SetFailureMode(false)
	if v := gaugeValue(t, r.FailureMode); v != 0 {
		t.Errorf("FailureMode = %v, want 0", v)
	}
}

func TestSystemMetrics(t *testing.T) {
	r := NewRegistry()
	r.UpdateSystemMetrics(time.Now().Add(-2 * time.Second))

	if v := gaugeValue(t, r.UptimeSeconds); v < 2 {
		t.Errorf("UptimeSeconds = %v, want >= 2", v)
	}
	if v := gaugeValue(t, r.GoRoutines); v < 1 {
		t.Errorf("GoRoutines = %v, want >= 1", v)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.RecordRemoteCall("list_nodes", "200", 10*time.Millisecond)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	counter, _ := r.RemoteRequestsTotal.GetMetricWithLabelValues("list_nodes", "200")
	if v := counterValue(t, counter); v != 1000 {
		t.Errorf("Counter = %v, want 1000", v)
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordRemoteCall("ensure_nodes", "200", time.Millisecond)
	r.UpdateTopology(3, 1)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`crclink_remote_requests_total{operation="ensure_nodes",status="200"} 1`,
		"crclink_nodes 3",
		"crclink_connections 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricNaming(t *testing.T) {
	r := NewRegistry()
	r.RecordRemoteCall("simulate", "200", time.Millisecond)
	r.RecordSimulation("clean")

	families, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("No metrics registered")
	}

	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "crclink_") {
			t.Errorf("Metric %s should have crclink_ prefix", f.GetName())
		}
	}
}

func BenchmarkRecordRemoteCall(b *testing.B) {
	r := NewRegistry()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r.RecordRemoteCall("simulate", "200", 10*time.Millisecond)
	}
}
