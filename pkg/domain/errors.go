package domain

import "errors"

// ErrSessionNotFound is returned when a run id cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// Construction errors. They are returned by Config.Validate and by the
// constructors of the wizard and controller.
var (
	ErrNoSteps        = errors.New("wizard has no steps")
	ErrMissingStepID  = errors.New("step is missing an id")
	ErrDuplicateStep  = errors.New("duplicate step id")
	ErrUnknownStep    = errors.New("unknown step id")
	ErrNoVisibleSteps = errors.New("no visible steps")
)

// ErrCancelNotAllowed is returned when cancelling a run whose config disallows it.
var ErrCancelNotAllowed = errors.New("cancel not allowed")

// ErrRunClosed is returned when operating on a run that already completed or was cancelled.
var ErrRunClosed = errors.New("run is closed")
