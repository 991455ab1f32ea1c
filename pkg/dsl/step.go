package dsl

import (
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/schema"
)

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step    domain.StepDefinition
	schema  schema.Schema
	checks  []domain.ValidateFunc
	builder *Builder
}

// Title sets the heading shown for the step.
func (s *StepBuilder) Title(title string) *StepBuilder {
	s.step.Title = title
	return s
}

// Subtitle sets the secondary heading.
func (s *StepBuilder) Subtitle(subtitle string) *StepBuilder {
	s.step.Subtitle = subtitle
	return s
}

// Fields attaches a schema. It validates the step's data and, unless a
// renderer is set, doubles as the renderer so hosts know what to ask for.
func (s *StepBuilder) Fields(fields ...schema.Field) *StepBuilder {
	s.schema = append(s.schema, fields...)
	return s
}

// Field is shorthand for Fields with a single entry.
func (s *StepBuilder) Field(key string, t schema.Type) *StepBuilder {
	return s.Fields(schema.Field{Key: key, Type: t})
}

// Validate adds a custom check. Checks run after the schema, in order,
// and their messages are concatenated.
func (s *StepBuilder) Validate(fn domain.ValidateFunc) *StepBuilder {
	s.checks = append(s.checks, fn)
	return s
}

// Skippable lets the user skip the step.
func (s *StepBuilder) Skippable() *StepBuilder {
	s.step.CanSkip = true
	return s
}

// ShowIf makes the step conditional.
func (s *StepBuilder) ShowIf(fn domain.ShowFunc) *StepBuilder {
	s.step.ShouldShow = fn
	return s
}

// ShowWhen shows the step only while the boolean field key of step is true.
func (s *StepBuilder) ShowWhen(step, key string) *StepBuilder {
	return s.ShowIf(func(all domain.Data) bool {
		v, _ := all[step][key].(bool)
		return v
	})
}

// Render sets the opaque renderer handed to hosts.
func (s *StepBuilder) Render(r any) *StepBuilder {
	s.step.Renderer = r
	return s
}

// Step returns to the wizard builder to add the next step.
func (s *StepBuilder) Step(id string) *StepBuilder {
	return s.builder.Step(id)
}

// Builder returns the parent wizard builder.
func (s *StepBuilder) Builder() *Builder {
	return s.builder
}

// Build is a shortcut for the parent builder's Build.
func (s *StepBuilder) Build() (domain.Config, error) {
	return s.builder.Build()
}

func (s *StepBuilder) compile(now func() time.Time) domain.StepDefinition {
	step := s.step
	if step.Renderer == nil && len(s.schema) > 0 {
		step.Renderer = s.schema
	}

	var checks []domain.ValidateFunc
	if len(s.schema) > 0 {
		checks = append(checks, schema.StepValidatorAt(s.schema, now))
	}
	checks = append(checks, s.checks...)

	switch len(checks) {
	case 0:
	case 1:
		step.Validate = checks[0]
	default:
		step.Validate = func(data domain.StepData, all domain.Data) []string {
			var errs []string
			for _, check := range checks {
				errs = append(errs, check(data, all)...)
			}
			return errs
		}
	}
	return step
}
