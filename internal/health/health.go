// Package health runs named dependency checks for the /health endpoints.
//
// Checks run concurrently, each bounded by the registry timeout, and results
// come back in registration order. Optional dependencies (graph mirror,
// event broker) register as non-critical: they are reported but do not make
// the service unhealthy.
package health

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 2 * time.Second

// Status represents the health of a single dependency.
type Status struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Detail   string `json:"detail,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

// Registry holds named checks and runs them on demand.
type Registry struct {
	mu      sync.RWMutex
	checks  []check
	timeout time.Duration
}

type check struct {
	name     string
	critical bool
	ping     PingFunc
}

// NewRegistry creates a registry whose checks time out after timeout
// (DefaultTimeout when zero).
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{timeout: timeout}
}

// Register adds a critical check.
func (r *Registry) Register(name string, ping PingFunc) {
	r.add(check{name: name, critical: true, ping: ping})
}

// RegisterOptional adds a check whose failure is reported but does not
// fail the aggregate.
func (r *Registry) RegisterOptional(name string, ping PingFunc) {
	r.add(check{name: name, ping: ping})
}

func (r *Registry) add(c check) {
	r.mu.Lock()
	r.checks = append(r.checks, c)
	r.mu.Unlock()
}

// CheckAll runs every check and returns the aggregate health plus the
// individual results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checks := make([]check, len(r.checks))
	copy(checks, r.checks)
	r.mu.RUnlock()

	statuses = make([]Status, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c check) {
			defer wg.Done()
			statuses[i] = r.run(ctx, c)
		}(i, c)
	}
	wg.Wait()

	healthy = true
	for _, s := range statuses {
		if s.Critical && !s.Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}

func (r *Registry) run(ctx context.Context, c check) Status {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := c.ping(ctx)
	s := Status{
		Name:     c.name,
		Healthy:  err == nil,
		Critical: c.critical,
		Latency:  time.Since(start).Round(time.Microsecond).String(),
	}
	if err != nil {
		s.Detail = err.Error()
	}
	return s
}
