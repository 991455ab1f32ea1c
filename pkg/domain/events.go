package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter        EventType = "step_enter"
	EventStepLeave        EventType = "step_leave"
	EventValidationFailed EventType = "validation_failed"
	EventComplete         EventType = "complete"
	EventCancel           EventType = "cancel"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// StepEvent represents entry into or exit from a step.
type StepEvent struct {
	EventBase
	StepID string `json:"step_id"`
	// Errors is set for EventValidationFailed.
	Errors []string `json:"errors,omitempty"`
}

// RunEvent represents the end of a run.
type RunEvent struct {
	EventBase
	Flow string `json:"flow,omitempty"`
}

// LifecycleHooks defines callbacks for wizard observability.
type LifecycleHooks struct {
	OnStepEnter        func(context.Context, *StepEvent)
	OnStepLeave        func(context.Context, *StepEvent)
	OnValidationFailed func(context.Context, *StepEvent)
	OnComplete         func(context.Context, *RunEvent)
	OnCancel           func(context.Context, *RunEvent)
}
