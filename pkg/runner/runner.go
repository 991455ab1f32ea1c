package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/schema"
)

// Runner drives a Controller from a terminal until the run completes or is
// cancelled.
type Runner struct {
	Handler IOHandler
	Logger  *slog.Logger
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// NewRunner creates a Runner on stdin and stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewHandler(os.Stdin, os.Stdout, nil)
	}
	return r
}

// Confirmer adapts the handler so cancellation is confirmed on the same terminal.
func (r *Runner) Confirmer() stepwise.Confirmer {
	return stepwise.ConfirmFunc(r.Handler.Confirm)
}

// Run loops Render -> Input -> Navigate until the run leaves the active state.
// It returns the final status. io.EOF on input ends the loop with the run
// still active.
func (r *Runner) Run(ctx context.Context, ctl *stepwise.Controller) (domain.RunStatus, error) {
	w := ctl.Wizard()
	for {
		if status := w.Status(); status != domain.StatusActive {
			return status, nil
		}
		if err := ctx.Err(); err != nil {
			return w.Status(), err
		}

		props := ctl.Props()
		if err := r.Handler.ShowStep(ctx, props); err != nil {
			return w.Status(), fmt.Errorf("output error: %w", err)
		}

		if err := r.collect(ctx, props); err != nil {
			return r.stop(w, err)
		}

		action, err := r.Handler.Choose(ctx, Actions(ctl.Props()))
		if err != nil {
			return r.stop(w, err)
		}
		if err := r.apply(ctx, ctl, action); err != nil {
			return w.Status(), err
		}
	}
}

func (r *Runner) collect(ctx context.Context, props stepwise.StepProps) error {
	fields, ok := props.Step.Renderer.(schema.Schema)
	if !ok {
		return nil
	}
	partial := domain.StepData{}
	// Answers given before a failed read are still applied.
	defer func() {
		if len(partial) > 0 {
			props.OnDataChange(ctx, partial)
		}
	}()
	for _, field := range fields {
		value, err := r.Handler.Ask(ctx, field, props.Data[field.Key])
		if err != nil {
			return err
		}
		if value != nil {
			partial[field.Key] = value
		}
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, ctl *stepwise.Controller, action Action) error {
	r.Logger.Debug("action", "action", action, "step", ctl.Wizard().CurrentStep().ID)

	switch action {
	case ActionNext, ActionSave:
		ok, err := ctl.Next(ctx)
		if err != nil {
			return err
		}
		if ok && action == ActionSave {
			return r.Handler.SystemOutput(ctx, "Saved.")
		}
	case ActionBack:
		ctl.Back(ctx)
	case ActionSkip:
		ctl.Skip(ctx)
	case ActionCancel:
		cancelled, err := ctl.Cancel(ctx)
		if err != nil {
			return err
		}
		if cancelled {
			return r.Handler.SystemOutput(ctx, "Cancelled.")
		}
	default:
		r.Logger.Warn("unknown action ignored", "action", action)
	}
	return nil
}

func (r *Runner) stop(w *stepwise.Wizard, err error) (domain.RunStatus, error) {
	if errors.Is(err, io.EOF) {
		r.Logger.Debug("input closed", "run_id", w.RunID())
		return w.Status(), nil
	}
	return w.Status(), err
}
