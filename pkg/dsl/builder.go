package dsl

import (
	"fmt"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Builder assembles a wizard configuration step by step.
// Steps keep the order in which they were first added.
type Builder struct {
	cfg   domain.Config
	order []string
	steps map[string]*StepBuilder
	now   func() time.Time
}

// New creates a builder for the named flow.
func New(flow string) *Builder {
	return &Builder{
		cfg:   domain.Config{Flow: flow},
		steps: make(map[string]*StepBuilder),
	}
}

// Step adds a step to the wizard.
// If the step already exists, it returns the existing builder.
func (b *Builder) Step(id string) *StepBuilder {
	if sb, ok := b.steps[id]; ok {
		return sb
	}
	sb := &StepBuilder{
		step:    domain.StepDefinition{ID: id},
		builder: b,
	}
	b.steps[id] = sb
	b.order = append(b.order, id)
	return sb
}

// AllowCancel lets the user abandon the wizard.
func (b *Builder) AllowCancel() *Builder {
	b.cfg.AllowCancel = true
	return b
}

// PersistKey enables autosave under key.
func (b *Builder) PersistKey(key string) *Builder {
	b.cfg.PersistKey = key
	return b
}

// InitialData seeds the run data. The map is copied at Build time.
func (b *Builder) InitialData(data domain.Data) *Builder {
	b.cfg.InitialData = data
	return b
}

// Clock overrides the time source handed to schema validators.
func (b *Builder) Clock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build compiles the steps into a validated configuration.
func (b *Builder) Build() (domain.Config, error) {
	now := b.now
	if now == nil {
		now = time.Now
	}

	cfg := b.cfg
	cfg.InitialData = b.cfg.InitialData.Clone()
	cfg.Steps = make([]domain.StepDefinition, 0, len(b.order))
	for _, id := range b.order {
		cfg.Steps = append(cfg.Steps, b.steps[id].compile(now))
	}

	if err := cfg.Validate(); err != nil {
		return domain.Config{}, fmt.Errorf("invalid wizard %q: %w", cfg.Flow, err)
	}
	return cfg, nil
}

// MustBuild is Build for package-level flow definitions. It panics on error.
func (b *Builder) MustBuild() domain.Config {
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}
