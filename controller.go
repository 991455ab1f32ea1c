package stepwise

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// CancelPrompt is the question handed to the Confirmer before cancelling.
const CancelPrompt = "Discard this entry? Everything entered so far will be lost."

// CompleteFunc receives the data of a completed run.
type CompleteFunc func(ctx context.Context, data domain.Data) error

// CancelFunc runs after the user confirmed cancellation.
type CancelFunc func(ctx context.Context) error

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// StepProps is everything a step renderer needs to draw the active step and
// wire its controls.
type StepProps struct {
	Step       domain.StepDefinition
	StepIndex  int
	StepCount  int
	IsLastStep bool

	// Data is the active step's slice, empty before anything was entered.
	Data domain.StepData
	// Errors is empty until the user tried to leave the step.
	Errors []string
	// AllWizardData is a read-only copy for review and cross-step rendering.
	AllWizardData domain.Data

	CanGoNext bool
	CanGoBack bool
	CanSkip   bool
	CanCancel bool

	OnDataChange func(ctx context.Context, partial domain.StepData)
	OnNext       func(ctx context.Context) (bool, error)
	OnBack       func(ctx context.Context) bool
	OnSkip       func(ctx context.Context) bool
}

// Controller drives one wizard run to completion or cancellation.
type Controller struct {
	wizard     *Wizard
	onComplete CompleteFunc
	onCancel   CancelFunc
	confirmer  Confirmer
	sink       ports.CompletionSink
	wizardOpts []Option
	now        func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithConfirmer sets who confirms cancellation. Without one, calling Cancel
// counts as the confirmation.
func WithConfirmer(c Confirmer) ControllerOption {
	return func(ctl *Controller) {
		ctl.confirmer = c
	}
}

// WithSink publishes every completed run, after the completion callback succeeded.
func WithSink(sink ports.CompletionSink) ControllerOption {
	return func(ctl *Controller) {
		ctl.sink = sink
	}
}

// WithWizardOptions forwards options to the underlying Wizard.
func WithWizardOptions(opts ...Option) ControllerOption {
	return func(ctl *Controller) {
		ctl.wizardOpts = append(ctl.wizardOpts, opts...)
	}
}

// NewController builds the wizard for cfg. Construction errors surface here.
func NewController(cfg domain.Config, onComplete CompleteFunc, onCancel CancelFunc, opts ...ControllerOption) (*Controller, error) {
	ctl := &Controller{
		onComplete: onComplete,
		onCancel:   onCancel,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(ctl)
	}

	w, err := New(cfg, ctl.wizardOpts...)
	if err != nil {
		return nil, err
	}
	if w.now != nil {
		ctl.now = w.now
	}
	ctl.wizard = w
	return ctl, nil
}

// Wizard exposes the underlying run.
func (c *Controller) Wizard() *Wizard {
	return c.wizard
}

// Props derives the render contract of the active step from a single read
// of the run, so concurrent hosts never see fields of different steps.
func (c *Controller) Props() StepProps {
	v := c.wizard.view()
	return StepProps{
		Step:          v.step,
		StepIndex:     v.index,
		StepCount:     v.count,
		IsLastStep:    v.isLast,
		Data:          v.data,
		Errors:        v.errors,
		AllWizardData: v.all,
		CanGoNext:     v.canGoNext,
		CanGoBack:     v.canGoBack,
		CanSkip:       v.canSkip,
		CanCancel:     c.wizard.Config().AllowCancel && v.status == domain.StatusActive,
		OnDataChange:  c.Update,
		OnNext:        c.Next,
		OnBack:        c.Back,
		OnSkip:        c.Skip,
	}
}

// Update merges partial into the active step.
func (c *Controller) Update(ctx context.Context, partial domain.StepData) {
	c.wizard.UpdateStepData(ctx, partial)
}

// Next is the Next button, which becomes Save on the last visible step.
func (c *Controller) Next(ctx context.Context) (bool, error) {
	if c.wizard.IsLastStep() {
		return c.Save(ctx)
	}
	return c.wizard.GoNext(ctx), nil
}

// Save completes the run and hands the collected data to the completion
// callback. It reports false with no error when some visible step is invalid.
func (c *Controller) Save(ctx context.Context) (bool, error) {
	if !c.wizard.Complete(ctx) {
		return false, nil
	}

	data := c.wizard.Data()
	if c.onComplete != nil {
		if err := c.onComplete(ctx, data); err != nil {
			return false, fmt.Errorf("completion callback: %w", err)
		}
	}
	if c.sink != nil {
		state := c.wizard.State()
		completion := domain.Completion{
			RunID:       state.RunID,
			Flow:        state.Flow,
			Data:        data.Clone(),
			CompletedAt: c.now(),
		}
		if err := c.sink.Publish(ctx, completion); err != nil {
			return true, fmt.Errorf("publish completion: %w", err)
		}
	}
	return true, nil
}

// Back is the Back button.
func (c *Controller) Back(ctx context.Context) bool {
	return c.wizard.GoBack(ctx)
}

// Skip is the Skip button.
func (c *Controller) Skip(ctx context.Context) bool {
	return c.wizard.SkipStep(ctx)
}

// CancelVisible reports whether the Cancel control is offered.
func (c *Controller) CancelVisible() bool {
	return c.wizard.Config().AllowCancel && c.wizard.Status() == domain.StatusActive
}

// Cancel asks for confirmation and abandons the run. It returns
// domain.ErrCancelNotAllowed when the config does not offer cancellation.
func (c *Controller) Cancel(ctx context.Context) (bool, error) {
	if !c.wizard.Config().AllowCancel {
		return false, domain.ErrCancelNotAllowed
	}
	if c.wizard.Status() != domain.StatusActive {
		return false, nil
	}

	if c.confirmer != nil {
		ok, err := c.confirmer.Confirm(ctx, CancelPrompt)
		if err != nil {
			return false, fmt.Errorf("confirm cancel: %w", err)
		}
		if !ok {
			return false, nil
		}
	}

	c.wizard.Cancel(ctx)
	if c.onCancel != nil {
		if err := c.onCancel(ctx); err != nil {
			return true, fmt.Errorf("cancel callback: %w", err)
		}
	}
	return true, nil
}

// Close drains pending autosaves.
func (c *Controller) Close() error {
	return c.wizard.Close()
}
