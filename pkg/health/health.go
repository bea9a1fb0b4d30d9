// Package health reports whether the console can reach its collaborator and
// stores, over /health, /health/ready and /health/live.
package health

import (
	"slices"
	"time"
)

type probe int

const (
	probeHealth probe = iota
	probeReady
	probeLive
	probeCount
)

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	hc := &HealthChecker{started: time.Now()}
	for p := range hc.probes {
		hc.probes[p] = make(map[string]CheckFunc)
	}
	return hc
}

func (hc *HealthChecker) register(p probe, name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.probes[p][name] = check
}

// RegisterCheck adds a check to the full /health report
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.register(probeHealth, name, check)
}

// RegisterReadinessCheck adds a check gating /health/ready
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.register(probeReady, name, check)
}

// RegisterLivenessCheck adds a check gating /health/live
func (hc *HealthChecker) RegisterLivenessCheck(name string, check CheckFunc) {
	hc.register(probeLive, name, check)
}

// Check performs all health checks
func (hc *HealthChecker) Check() Response { return hc.run(probeHealth) }

func (hc *HealthChecker) CheckReadiness() Response { return hc.run(probeReady) }

func (hc *HealthChecker) CheckLiveness() Response { return hc.run(probeLive) }

// run evaluates one probe's checks in name order
func (hc *HealthChecker) run(p probe) Response {
	hc.mu.RLock()
	checks := hc.probes[p]
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	funcs := make([]CheckFunc, len(names))
	slices.Sort(names)
	for i, name := range names {
		funcs[i] = checks[name]
	}
	hc.mu.RUnlock()

	now := time.Now()
	response := Response{
		Status:    StatusHealthy,
		Timestamp: now,
		Checks:    make(map[string]Check, len(names)),
		Uptime:    now.Sub(hc.started),
	}

	for i, name := range names {
		start := time.Now()
		check := funcs[i]()
		check.Duration = time.Since(start)
		check.LastChecked = start

		response.Checks[name] = check
		response.Status = worst(response.Status, check.Status)
	}
	return response
}

func worst(a, b Status) Status {
	if severity(b) > severity(a) {
		return b
	}
	return a
}

func severity(s Status) int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
