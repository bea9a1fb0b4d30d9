package health

import (
	"context"
	"time"
)

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// HistoryCheck reports whether the transmission history store is reachable
func HistoryCheck(ping func(ctx context.Context) error, timeout time.Duration) CheckFunc {
	return func() Check {
		check := Check{
			Name: "history",
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			// History is optional; the console keeps working without it
			check.Status = StatusDegraded
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}

		return check
	}
}

// CollaboratorCheck reports on the simulation collaborator as seen by the
// last refresh. A refresh older than staleAfter degrades the check.
func CollaboratorCheck(state func() CollaboratorState, staleAfter time.Duration) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "collaborator",
			Details: make(map[string]any),
		}

		s := state()
		check.Details["failure_mode"] = s.FailureMode
		if !s.LastRefresh.IsZero() {
			check.Details["last_refresh"] = s.LastRefresh
		}

		switch {
		case s.LastRefresh.IsZero() && s.LastError != nil:
			check.Status = StatusUnhealthy
			check.Message = s.LastError.Error()
		case s.LastRefresh.IsZero():
			check.Status = StatusDegraded
			check.Message = "No refresh yet"
		case s.LastError != nil:
			check.Status = StatusDegraded
			check.Message = s.LastError.Error()
		case s.FailureMode:
			check.Status = StatusDegraded
			check.Message = "Simulated failure mode on"
		case staleAfter > 0 && time.Since(s.LastRefresh) > staleAfter:
			check.Status = StatusDegraded
			check.Message = "Node list is stale"
		default:
			check.Status = StatusHealthy
			check.Message = "Reachable"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := 0.0
		if sys > 0 {
			usagePercent = float64(alloc) / float64(sys) * 100
		}

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
