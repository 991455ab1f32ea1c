package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// RunStatus defines the lifecycle position of a wizard run.
type RunStatus string

const (
	StatusActive    RunStatus = "active"    // Steps are being filled
	StatusCompleted RunStatus = "completed" // Complete succeeded
	StatusCancelled RunStatus = "cancelled" // Abandoned by the user
)

// State represents the current snapshot of a wizard run.
type State struct {
	// RunID identifies the run in stores and logs.
	RunID string `json:"run_id"`

	// Flow is the name of the wizard the run belongs to.
	Flow string `json:"flow,omitempty"`

	// CurrentStepID is the id of the active step. It may point to a step that
	// became hidden; readers resolve it against the visible sequence.
	CurrentStepID string `json:"current_step_id"`

	Status RunStatus `json:"status"`

	// Data holds what each step collected, keyed by step id.
	Data Data `json:"data"`

	// Completed holds the steps the user successfully advanced past.
	Completed StepSet `json:"completed"`

	// Errors holds the stored errors of the last validation attempt per step.
	Errors map[string][]string `json:"errors"`

	// Attempted holds the steps the user tried to leave at least once.
	Attempted StepSet `json:"attempted"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a clean state positioned at the given step.
func NewState(runID, startStepID string, data Data) *State {
	if data == nil {
		data = make(Data)
	}
	return &State{
		RunID:         runID,
		CurrentStepID: startStepID,
		Status:        StatusActive,
		Data:          data,
		Completed:     NewStepSet(),
		Errors:        make(map[string][]string),
		Attempted:     NewStepSet(),
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Data = s.Data.Clone()
	if out.Data == nil {
		out.Data = make(Data)
	}
	out.Completed = s.Completed.Clone()
	out.Attempted = s.Attempted.Clone()
	out.Errors = make(map[string][]string, len(s.Errors))
	for id, errs := range s.Errors {
		out.Errors[id] = append([]string{}, errs...)
	}
	return &out
}

// Normalize fills nil collections, typically after decoding a snapshot.
func (s *State) Normalize() {
	if s.Data == nil {
		s.Data = make(Data)
	}
	if s.Completed == nil {
		s.Completed = NewStepSet()
	}
	if s.Attempted == nil {
		s.Attempted = NewStepSet()
	}
	if s.Errors == nil {
		s.Errors = make(map[string][]string)
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
}

// StepSet is a set of step ids. It serializes as a sorted JSON array.
type StepSet map[string]struct{}

// NewStepSet creates a set holding the given ids.
func NewStepSet(ids ...string) StepSet {
	s := make(StepSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s StepSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s StepSet) Add(id string) {
	s[id] = struct{}{}
}

func (s StepSet) Remove(id string) {
	delete(s, id)
}

// IDs returns the members in sorted order.
func (s StepSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s StepSet) Clone() StepSet {
	out := make(StepSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s StepSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *StepSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewStepSet(ids...)
	return nil
}

// Completion is the payload handed to the host when a run completes.
// It carries only the collected data, never the wizard bookkeeping.
type Completion struct {
	RunID       string    `json:"run_id"`
	Flow        string    `json:"flow,omitempty"`
	Data        Data      `json:"data"`
	CompletedAt time.Time `json:"completed_at"`
}
