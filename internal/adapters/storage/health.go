package storage

import "context"

// Pinger is the connectivity probe both store implementations expose.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck adapts a store's Ping into a ports.HealthChecker.
type HealthCheck struct {
	name  string
	store Pinger
}

// NewHealthCheck creates a health checker reporting under the given name.
func NewHealthCheck(name string, store Pinger) *HealthCheck {
	return &HealthCheck{name: name, store: store}
}

// Name returns the checker's registry name.
func (h *HealthCheck) Name() string { return h.name }

// Check probes the underlying store.
func (h *HealthCheck) Check(ctx context.Context) error {
	return h.store.Ping(ctx)
}
