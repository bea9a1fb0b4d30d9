package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker()

	if hc == nil {
		t.Fatal("NewHealthChecker returned nil")
	}
	for p, checks := range hc.probes {
		if checks == nil {
			t.Errorf("probe %d not initialized", p)
		}
	}
	if hc.started.IsZero() {
		t.Error("start time not recorded")
	}
}

func TestWorstStatusWins(t *testing.T) {
	tests := []struct {
		statuses []Status
		want     Status
	}{
		{nil, StatusHealthy},
		{[]Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{[]Status{StatusUnhealthy, StatusDegraded}, StatusUnhealthy},
		{[]Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		hc := NewHealthChecker()
		for i, s := range tt.statuses {
			status := s
			hc.RegisterCheck(string(rune('a'+i)), func() Check { return Check{Status: status} })
		}
		if got := hc.Check().Status; got != tt.want {
			t.Errorf("statuses %v: got %s, want %s", tt.statuses, got, tt.want)
		}
	}
}

func TestRegisterReadinessCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterReadinessCheck("ready-test", func() Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	hc.Check()
	if called {
		t.Error("readiness check should not be called for Check()")
	}

	resp := hc.CheckReadiness()
	if !called {
		t.Error("readiness check was not called")
	}
	if _, exists := resp.Checks["ready-test"]; !exists {
		t.Error("readiness check result not in response")
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name           string
		checkStatuses  []Status
		expectedStatus Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"one unhealthy", []Status{StatusHealthy, StatusUnhealthy}, StatusUnhealthy},
		{"degraded and unhealthy", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"no checks", []Status{}, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()

			for i, status := range tt.checkStatuses {
				s := status
				hc.RegisterCheck(string(rune('a'+i)), func() Check {
					return Check{Status: s}
				})
			}

			resp := hc.Check()
			if resp.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, resp.Status)
			}
		})
	}
}

func TestCheckDuration(t *testing.T) {
	hc := NewHealthChecker()

	sleepDuration := 10 * time.Millisecond
	hc.RegisterCheck("slow", func() Check {
		time.Sleep(sleepDuration)
		return Check{Status: StatusHealthy}
	})

	resp := hc.Check()
	if resp.Checks["slow"].Duration < sleepDuration {
		t.Errorf("duration %v less than sleep time %v", resp.Checks["slow"].Duration, sleepDuration)
	}
	if resp.Uptime <= 0 {
		t.Error("uptime not set")
	}
}

func TestHistoryCheck(t *testing.T) {
	ok := HistoryCheck(func(context.Context) error { return nil }, time.Second)()
	if ok.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", ok.Status)
	}

	down := HistoryCheck(func(context.Context) error { return errors.New("connection refused") }, time.Second)()
	if down.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", down.Status)
	}
	if down.Message != "connection refused" {
		t.Errorf("unexpected message %q", down.Message)
	}

	var deadlineSet bool
	HistoryCheck(func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	}, time.Second)()
	if !deadlineSet {
		t.Error("ping context should carry the timeout")
	}
}

func TestCollaboratorCheck(t *testing.T) {
	now := time.Now()
	boom := errors.New("connection refused")

	tests := []struct {
		name       string
		state      CollaboratorState
		staleAfter time.Duration
		want       Status
	}{
		{"never reached", CollaboratorState{LastError: boom}, 0, StatusUnhealthy},
		{"no refresh yet", CollaboratorState{}, 0, StatusDegraded},
		{"last refresh failed", CollaboratorState{LastRefresh: now, LastError: boom}, 0, StatusDegraded},
		{"failure mode", CollaboratorState{LastRefresh: now, FailureMode: true}, 0, StatusDegraded},
		{"stale", CollaboratorState{LastRefresh: now.Add(-time.Minute)}, 10 * time.Second, StatusDegraded},
		{"fresh", CollaboratorState{LastRefresh: now}, 10 * time.Second, StatusHealthy},
		{"staleness disabled", CollaboratorState{LastRefresh: now.Add(-time.Hour)}, 0, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CollaboratorCheck(func() CollaboratorState { return tt.state }, tt.staleAfter)()
			if check.Status != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, check.Status, check.Message)
			}
			if check.Details["failure_mode"] != tt.state.FailureMode {
				t.Error("failure_mode detail missing")
			}
		})
	}
}

func TestMemoryCheck(t *testing.T) {
	if c := MemoryCheck(func() (uint64, uint64) { return 10, 100 })(); c.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", c.Status)
	}
	if c := MemoryCheck(func() (uint64, uint64) { return 95, 100 })(); c.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", c.Status)
	}
	if c := MemoryCheck(func() (uint64, uint64) { return 0, 0 })(); c.Status != StatusHealthy {
		t.Errorf("zero sys should not divide by zero, got %s", c.Status)
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name         string
		checkStatus  Status
		expectedCode int
	}{
		{"healthy returns 200", StatusHealthy, http.StatusOK},
		{"degraded returns 200", StatusDegraded, http.StatusOK},
		{"unhealthy returns 503", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterCheck("test", func() Check {
				return Check{Status: tt.checkStatus}
			})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()

			hc.HTTPHandler()(rec, req)

			if rec.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, rec.Code)
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Error("expected Content-Type application/json")
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.checkStatus {
				t.Errorf("expected response status %s, got %s", tt.checkStatus, resp.Status)
			}
		})
	}
}

func TestReadinessHandler_DegradedIsNotReady(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterReadinessCheck("collaborator", func() Check {
		return Check{Status: StatusDegraded}
	})

	rec := httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestMux(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterLivenessCheck("loop", func() Check { return SimpleCheck("loop") })

	metricsCalled := false
	mux := hc.Mux(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metricsCalled = true
	}))

	for _, path := range []string{"/health", "/health/ready", "/health/live"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !metricsCalled {
		t.Error("metrics handler not mounted")
	}

	bare := hc.Mux(nil)
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without metrics, got %d", rec.Code)
	}
}

func TestConcurrentCheckRegistration(t *testing.T) {
	hc := NewHealthChecker()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			hc.RegisterCheck(string(rune('a'+id)), func() Check {
				return Check{Status: StatusHealthy}
			})
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	for i := 0; i < 10; i++ {
		go func() {
			hc.Check()
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if resp := hc.Check(); len(resp.Checks) != 10 {
		t.Errorf("expected 10 checks, got %d", len(resp.Checks))
	}
}
