package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/gosimple/slug"
)

// ErrFlowNotFound is returned when no flow is registered under a name.
var ErrFlowNotFound = errors.New("flow not found")

// Factory builds a fresh configuration for a flow. It runs on every lookup
// so flows can bind clocks or seed data per run.
type Factory func() (domain.Config, error)

// Registry manages the available wizard flows.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		flows: make(map[string]Factory),
	}
}

// Name returns the canonical registry key for a flow name.
func Name(flow string) string {
	return slug.Make(flow)
}

// Register adds a flow under its slugged name.
// If a flow with the same name exists, it is overwritten.
func (r *Registry) Register(name string, factory Factory) error {
	key := Name(name)
	if key == "" {
		return fmt.Errorf("invalid flow name %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[key] = factory
	return nil
}

// RegisterConfig registers a prebuilt configuration under its Flow name.
func (r *Registry) RegisterConfig(cfg domain.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return r.Register(cfg.Flow, func() (domain.Config, error) { return cfg, nil })
}

// Get builds the named flow.
func (r *Registry) Get(name string) (domain.Config, error) {
	r.mu.RLock()
	factory, ok := r.flows[Name(name)]
	r.mu.RUnlock()

	if !ok {
		return domain.Config{}, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
	}
	cfg, err := factory()
	if err != nil {
		return domain.Config{}, fmt.Errorf("build flow %s: %w", name, err)
	}
	if cfg.Flow == "" {
		cfg.Flow = Name(name)
	}
	return cfg, nil
}

// List returns the registered names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFlow implements ports.FlowLoader.
func (r *Registry) LoadFlow(_ context.Context, name string) (domain.Config, error) {
	return r.Get(name)
}

// ListFlows implements ports.FlowLoader.
func (r *Registry) ListFlows(_ context.Context) ([]string, error) {
	return r.List(), nil
}
