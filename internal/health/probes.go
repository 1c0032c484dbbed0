package health

import (
	"context"
	"sync/atomic"
	"time"
)

// ProbeManager tracks console lifecycle on top of a Manager.
type ProbeManager struct {
	*Manager

	started  time.Time
	version  string
	ready    atomic.Bool
	stopping atomic.Bool
}

// NewProbeManager returns a ProbeManager that is live but not ready.
func NewProbeManager(version string, checkers ...Checker) *ProbeManager {
	return &ProbeManager{
		Manager: NewManager(checkers...),
		started: time.Now(),
		version: version,
	}
}

// MarkReady is called once the session has been restored.
func (p *ProbeManager) MarkReady() { p.ready.Store(true) }

// MarkShutdown makes readiness fail while connections drain.
func (p *ProbeManager) MarkShutdown() { p.stopping.Store(true) }

func (p *ProbeManager) IsReady() bool        { return p.ready.Load() }
func (p *ProbeManager) IsShuttingDown() bool { return p.stopping.Load() }

// Report is the JSON body of a probe endpoint.
type Report struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (p *ProbeManager) report(status Status, checks map[string]*Result) *Report {
	return &Report{
		Status:    status,
		Version:   p.version,
		Uptime:    time.Since(p.started).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now(),
	}
}

// Liveness never runs dependency checks. It degrades during shutdown.
func (p *ProbeManager) Liveness(context.Context) *Report {
	if p.IsShuttingDown() {
		return p.report(StatusDegraded, nil)
	}
	return p.report(StatusHealthy, nil)
}

// Readiness is unhealthy before MarkReady and after MarkShutdown; otherwise
// it reflects the registered checks.
func (p *ProbeManager) Readiness(ctx context.Context) *Report {
	if p.IsShuttingDown() || !p.IsReady() {
		return p.report(StatusUnhealthy, nil)
	}
	checks := p.Check(ctx)
	return p.report(Overall(checks), checks)
}
