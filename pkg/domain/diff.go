package domain

import (
	"reflect"
)

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// RunID is always present to identify the target.
	RunID string `json:"run_id"`

	CurrentStepID *string    `json:"current_step_id,omitempty"`
	Status        *RunStatus `json:"status,omitempty"`

	// Data contains only changed, added or deleted step slices.
	// For deletions, the key is present with a nil value.
	Data map[string]StepData `json:"data,omitempty"`

	// Completed and Attempted carry the full set when membership changed.
	Completed []string `json:"completed,omitempty"`
	Attempted []string `json:"attempted,omitempty"`

	// Errors contains the stored error lists that changed.
	Errors map[string][]string `json:"errors,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		RunID: newState.RunID,
	}

	if oldState == nil || oldState.CurrentStepID != newState.CurrentStepID {
		diff.CurrentStepID = &newState.CurrentStepID
	}
	if oldState == nil || oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}

	diff.Data = diffData(oldState, newState)
	diff.Errors = diffErrors(oldState, newState)

	if oldState == nil || !reflect.DeepEqual(oldState.Completed.IDs(), newState.Completed.IDs()) {
		diff.Completed = newState.Completed.IDs()
	}
	if oldState == nil || !reflect.DeepEqual(oldState.Attempted.IDs(), newState.Attempted.IDs()) {
		diff.Attempted = newState.Attempted.IDs()
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffData(old *State, new *State) map[string]StepData {
	delta := make(map[string]StepData)

	if old == nil {
		for k, v := range new.Data {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Data {
		oldVal, exists := old.Data[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Data {
		if _, exists := new.Data[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffErrors(old *State, new *State) map[string][]string {
	delta := make(map[string][]string)
	for k, errs := range new.Errors {
		if old == nil {
			delta[k] = errs
			continue
		}
		if prev, ok := old.Errors[k]; !ok || !reflect.DeepEqual(prev, errs) {
			delta[k] = errs
		}
	}
	if old != nil {
		for k := range old.Errors {
			if _, ok := new.Errors[k]; !ok {
				delta[k] = nil
			}
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentStepID == nil &&
		d.Status == nil &&
		len(d.Data) == 0 &&
		len(d.Errors) == 0 &&
		d.Completed == nil &&
		d.Attempted == nil
}
