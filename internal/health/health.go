// Package health aggregates readiness probes for the server's subsystems.
// The readiness endpoint runs every registered probe and reports the
// combined outcome in one shot.
package health

import (
	"context"
	"sync"
)

// Status is the outcome of probing one subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Probe inspects one subsystem. Probes must tolerate concurrent calls
// and honor ctx cancellation when they touch the network.
type Probe func(ctx context.Context) Status

// Report is the combined outcome of a full probe run. Healthy is false
// as soon as any single subsystem is unhealthy.
type Report struct {
	Healthy    bool     `json:"healthy"`
	Subsystems []Status `json:"subsystems"`
}

// Checks is a named set of probes, registered at startup and run
// together whenever readiness is asked for.
type Checks struct {
	mu     sync.RWMutex
	probes []namedProbe
}

type namedProbe struct {
	name  string
	probe Probe
}

func New() *Checks {
	return &Checks{}
}

// Register adds a probe under a subsystem name.
func (c *Checks) Register(name string, probe Probe) {
	c.mu.Lock()
	c.probes = append(c.probes, namedProbe{name: name, probe: probe})
	c.mu.Unlock()
}

// Run probes every subsystem in registration order. An empty set is
// healthy.
func (c *Checks) Run(ctx context.Context) Report {
	c.mu.RLock()
	probes := make([]namedProbe, len(c.probes))
	copy(probes, c.probes)
	c.mu.RUnlock()

	report := Report{Healthy: true, Subsystems: make([]Status, len(probes))}
	for i, np := range probes {
		report.Subsystems[i] = np.probe(ctx)
		if !report.Subsystems[i].Healthy {
			report.Healthy = false
		}
	}
	return report
}
