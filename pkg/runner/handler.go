package runner

import (
	"context"
	"strings"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/pkg/schema"
)

// Action is a control offered under a step.
type Action string

const (
	ActionNext   Action = "next"
	ActionSave   Action = "save"
	ActionBack   Action = "back"
	ActionSkip   Action = "skip"
	ActionCancel Action = "cancel"
)

// Label returns the button text of the action.
func (a Action) Label() string {
	if a == "" {
		return ""
	}
	return strings.ToUpper(string(a[:1])) + string(a[1:])
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between line-based and interactive terminal modes.
type IOHandler interface {
	// ShowStep presents the active step: title, progress and attempted errors.
	ShowStep(ctx context.Context, props stepwise.StepProps) error

	// Ask reads a value for a field. A nil value keeps whatever the step
	// already holds for it.
	Ask(ctx context.Context, field schema.Field, current any) (any, error)

	// Choose lets the user pick one of the offered actions.
	Choose(ctx context.Context, actions []Action) (Action, error)

	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, message string) (bool, error)

	// SystemOutput presents a meta-message (status updates, summaries).
	SystemOutput(ctx context.Context, msg string) error
}

// Actions lists the controls a step offers, Next or Save first.
func Actions(props stepwise.StepProps) []Action {
	actions := []Action{ActionNext}
	if props.IsLastStep {
		actions[0] = ActionSave
	}
	if props.CanSkip {
		actions = append(actions, ActionSkip)
	}
	if props.CanGoBack {
		actions = append(actions, ActionBack)
	}
	if props.CanCancel {
		actions = append(actions, ActionCancel)
	}
	return actions
}

// kind groups schema types by how an answer is typed in.
type kind int

const (
	kindText kind = iota
	kindBool
	kindList
)

func fieldKind(f schema.Field) kind {
	if f.Type == nil {
		return kindText
	}
	name := strings.TrimPrefix(f.Type.Name(), "?")
	switch {
	case name == "bool":
		return kindBool
	case name == "at_least_one" || strings.HasPrefix(name, "["):
		return kindList
	}
	return kindText
}

func splitList(s string) []any {
	var out []any
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinList(v any) string {
	var parts []string
	switch list := v.(type) {
	case []string:
		parts = list
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, ", ")
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return true, true
	case "n", "no", "false", "0":
		return false, true
	}
	return false, false
}
