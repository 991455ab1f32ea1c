package domain

import (
	"fmt"
)

// StepData is the opaque payload a single step collects.
type StepData map[string]any

// Data maps step ids to the data collected by each step.
type Data map[string]StepData

// ValidateFunc checks a step's data, with read access to the whole wizard data.
// An empty result means the step is valid.
type ValidateFunc func(step StepData, all Data) []string

// ShowFunc decides whether a step belongs to the visible sequence.
type ShowFunc func(all Data) bool

// StepDefinition is the author-supplied description of one wizard step.
type StepDefinition struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`

	// Renderer is handed untouched to whatever renders the step.
	Renderer any `json:"-"`

	// Validate is optional. A nil validator means the step is always valid.
	Validate ValidateFunc `json:"-"`

	CanSkip bool `json:"can_skip,omitempty"`

	// ShouldShow is optional. A nil predicate means the step is always visible.
	ShouldShow ShowFunc `json:"-"`
}

// Visible reports whether the step is part of the visible sequence for data.
func (s StepDefinition) Visible(data Data) bool {
	if s.ShouldShow == nil {
		return true
	}
	return s.ShouldShow(data)
}

// Check runs the step validator against the step slice of data.
func (s StepDefinition) Check(data Data) []string {
	if s.Validate == nil {
		return nil
	}
	step := data[s.ID]
	if step == nil {
		step = StepData{}
	}
	return s.Validate(step, data)
}

// Config is the immutable input of a wizard run.
type Config struct {
	// Flow is an optional name used for logging and persistence.
	Flow        string           `json:"flow,omitempty"`
	Steps       []StepDefinition `json:"steps"`
	InitialData Data             `json:"initial_data,omitempty"`
	AllowCancel bool             `json:"allow_cancel,omitempty"`

	// PersistKey enables autosave under this key when a store is configured.
	PersistKey string `json:"persist_key,omitempty"`
}

// Validate reports construction errors: no steps, missing or duplicate ids,
// and initial data keyed by undeclared steps.
func (c Config) Validate() error {
	if len(c.Steps) == 0 {
		return ErrNoSteps
	}

	seen := make(map[string]struct{}, len(c.Steps))
	for i, step := range c.Steps {
		if step.ID == "" {
			return fmt.Errorf("%w: step at position %d", ErrMissingStepID, i)
		}
		if _, ok := seen[step.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateStep, step.ID)
		}
		seen[step.ID] = struct{}{}
	}

	for id := range c.InitialData {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("%w: initial data references %q", ErrUnknownStep, id)
		}
	}
	return nil
}

// Step returns the declared step with the given id.
func (c Config) Step(id string) (StepDefinition, bool) {
	for _, s := range c.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepDefinition{}, false
}

// Has reports whether id is a declared step.
func (c Config) Has(id string) bool {
	_, ok := c.Step(id)
	return ok
}

// Visible returns the declared steps that pass their ShouldShow predicate,
// preserving declaration order.
func (c Config) Visible(data Data) []StepDefinition {
	visible := make([]StepDefinition, 0, len(c.Steps))
	for _, s := range c.Steps {
		if s.Visible(data) {
			visible = append(visible, s)
		}
	}
	return visible
}

// Clone returns a deep copy of the step data.
func (d StepData) Clone() StepData {
	if d == nil {
		return nil
	}
	out := make(StepData, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// Clone returns a deep copy of the wizard data.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for id, step := range d {
		out[id] = step.Clone()
	}
	return out
}

// Plain converts the data into nested generic maps, suitable for encoders
// that do not know the named map types.
func (d Data) Plain() map[string]any {
	out := make(map[string]any, len(d))
	for id, step := range d {
		out[id] = map[string]any(step.Clone())
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case StepData:
		return val.Clone()
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
