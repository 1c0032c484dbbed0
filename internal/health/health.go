// Package health aggregates dependency checks for the console server.
//
// A Manager runs every registered Checker in parallel under a per-check
// timeout. ProbeManager layers liveness and readiness on top: the console is
// live as soon as it listens and ready once the session has been restored
// and every dependency reports healthy.
package health

import (
	"context"
	"sync"
	"time"
)

// Checker verifies one dependency.
type Checker interface {
	// Name is a short lowercase identifier such as "session-store".
	Name() string
	// Check must return promptly once ctx is done.
	Check(ctx context.Context) *Result
}

// Status of a single check or of the whole console.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// Result is the outcome of one check.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
}

func newResult(status Status, message string) *Result {
	return &Result{Status: status, Message: message, Details: map[string]any{}}
}

// Healthy builds a healthy result.
func Healthy(message string) *Result { return newResult(StatusHealthy, message) }

// Degraded builds a degraded result.
func Degraded(message string) *Result { return newResult(StatusDegraded, message) }

// Unhealthy builds an unhealthy result.
func Unhealthy(message string) *Result { return newResult(StatusUnhealthy, message) }

// WithDetail records key and returns r for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// DefaultCheckTimeout bounds each individual check.
const DefaultCheckTimeout = 3 * time.Second

// Manager runs checks and folds their results.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
}

// NewManager returns an empty Manager using DefaultCheckTimeout.
func NewManager(checkers ...Checker) *Manager {
	return &Manager{checkers: checkers, timeout: DefaultCheckTimeout}
}

// WithTimeout replaces the per-check timeout.
func (m *Manager) WithTimeout(d time.Duration) *Manager {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
	return m
}

// Add registers c. Later checks with the same name overwrite earlier results.
func (m *Manager) Add(c Checker) {
	m.mu.Lock()
	m.checkers = append(m.checkers, c)
	m.mu.Unlock()
}

// Names lists registered checks in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.checkers))
	for i, c := range m.checkers {
		names[i] = c.Name()
	}
	return names
}

// Check runs every checker concurrently and returns results by name.
func (m *Manager) Check(ctx context.Context) map[string]*Result {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	timeout := m.timeout
	m.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*Result, len(checkers))
	)
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			res := c.Check(cctx)
			if res == nil {
				res = Unhealthy("check returned no result")
			}
			if res.Latency == 0 {
				res.Latency = time.Since(start)
			}

			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

// Overall folds results: any unhealthy wins, then any degraded.
func Overall(results map[string]*Result) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
