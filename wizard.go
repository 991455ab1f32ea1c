package stepwise

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/aretw0/stepwise/internal/runtime"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/google/uuid"
)

// Wizard is the high-level entry point for a single wizard run.
// It owns the run state and serializes every operation, so one Wizard can be
// shared by concurrent hosts.
type Wizard struct {
	mu      sync.Mutex
	machine *runtime.Machine
	state   *domain.State

	store    ports.StateStore
	snapshot *domain.State
	pool     pond.Pool
	lastSave pond.Task

	runID  string
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// Option defines a functional option for configuring the Wizard.
type Option func(*Wizard)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wizard) {
		w.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(w *Wizard) {
		w.hooks = hooks
	}
}

// WithStore enables autosave after every successful GoNext and SkipStep.
// Snapshots are keyed by the config's PersistKey, or the run id without one.
func WithStore(store ports.StateStore) Option {
	return func(w *Wizard) {
		w.store = store
	}
}

// WithSnapshot resumes a previously saved run instead of starting fresh.
func WithSnapshot(state *domain.State) Option {
	return func(w *Wizard) {
		w.snapshot = state
	}
}

// WithRunID sets the run id. A random UUID is used otherwise. A snapshot
// passed with WithSnapshot keeps the id it was saved with.
func WithRunID(id string) Option {
	return func(w *Wizard) {
		w.runID = id
	}
}

// WithClock overrides the clock used for state timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) {
		w.now = now
	}
}

// New validates cfg and starts (or resumes) a run.
func New(cfg domain.Config, opts ...Option) (*Wizard, error) {
	w := &Wizard{}
	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Flow != "" {
		w.logger = w.logger.With("flow", cfg.Flow)
	}

	machineOpts := []runtime.MachineOption{
		runtime.WithLogger(w.logger),
		runtime.WithLifecycleHooks(w.hooks),
	}
	if w.now != nil {
		machineOpts = append(machineOpts, runtime.WithClock(w.now))
	}
	machine, err := runtime.NewMachine(cfg, machineOpts...)
	if err != nil {
		return nil, err
	}
	w.machine = machine

	if w.snapshot != nil {
		w.state, err = machine.Restore(w.snapshot)
		w.snapshot = nil
	} else {
		if w.runID == "" {
			w.runID = uuid.NewString()
		}
		w.state, err = machine.Start(context.Background(), w.runID)
	}
	if err != nil {
		return nil, err
	}
	// A restored run keeps its own id; WithRunID only names snapshots without one.
	switch {
	case w.state.RunID != "":
		w.runID = w.state.RunID
	case w.runID == "":
		w.runID = uuid.NewString()
		w.state.RunID = w.runID
	default:
		w.state.RunID = w.runID
	}

	if w.store != nil {
		w.pool = pond.NewPool(1)
	}
	return w, nil
}

// Config returns the wizard configuration.
func (w *Wizard) Config() domain.Config {
	return w.machine.Config()
}

// RunID identifies the run.
func (w *Wizard) RunID() string {
	return w.runID
}

// State returns a deep copy of the run state.
func (w *Wizard) State() *domain.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone()
}

// Status returns the lifecycle position of the run.
func (w *Wizard) Status() domain.RunStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Status
}

// Data returns a deep copy of everything collected so far.
func (w *Wizard) Data() domain.Data {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Data.Clone()
}

// StepData returns a copy of what the step collected.
func (w *Wizard) StepData(stepID string) domain.StepData {
	w.mu.Lock()
	defer w.mu.Unlock()
	data := w.state.Data[stepID].Clone()
	if data == nil {
		data = domain.StepData{}
	}
	return data
}

// VisibleSteps returns the steps shown for the current data, in declared order.
func (w *Wizard) VisibleSteps() []domain.StepDefinition {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.Visible(w.state)
}

// CurrentStep returns the active step.
func (w *Wizard) CurrentStep() domain.StepDefinition {
	w.mu.Lock()
	defer w.mu.Unlock()
	step, _ := w.machine.Current(w.state)
	return step
}

// StepIndex returns the position of the active step among the visible ones.
func (w *Wizard) StepIndex() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.Index(w.state)
}

func (w *Wizard) CanGoBack() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.CanGoBack(w.state)
}

func (w *Wizard) CanSkip() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.CanSkip(w.state)
}

// CanGoNext reports the real-time validity of the active step.
func (w *Wizard) CanGoNext() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.CanGoNext(w.state)
}

func (w *Wizard) IsLastStep() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.IsLast(w.state)
}

// RealtimeErrors validates the active step against the current data.
// Nothing is stored.
func (w *Wizard) RealtimeErrors() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.RealtimeErrors(w.state)
}

// Errors returns the stored errors of a step, only once the user has tried
// to leave it.
func (w *Wizard) Errors(stepID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.AttemptedErrors(w.state, stepID)
}

// Completed reports whether the step is in the completed set.
func (w *Wizard) Completed(stepID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Completed.Has(stepID)
}

// Attempted reports whether the user tried to leave the step.
func (w *Wizard) Attempted(stepID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Attempted.Has(stepID)
}

// view is a consistent read of everything derived from one state.
type view struct {
	step      domain.StepDefinition
	index     int
	count     int
	isLast    bool
	data      domain.StepData
	errors    []string
	all       domain.Data
	canGoNext bool
	canGoBack bool
	canSkip   bool
	status    domain.RunStatus
}

func (w *Wizard) view() view {
	w.mu.Lock()
	defer w.mu.Unlock()
	step, _ := w.machine.Current(w.state)
	data := w.state.Data[step.ID].Clone()
	if data == nil {
		data = domain.StepData{}
	}
	return view{
		step:      step,
		index:     w.machine.Index(w.state),
		count:     len(w.machine.Visible(w.state)),
		isLast:    w.machine.IsLast(w.state),
		data:      data,
		errors:    w.machine.AttemptedErrors(w.state, step.ID),
		all:       w.state.Data.Clone(),
		canGoNext: w.machine.CanGoNext(w.state),
		canGoBack: w.machine.CanGoBack(w.state),
		canSkip:   w.machine.CanSkip(w.state),
		status:    w.state.Status,
	}
}

// UpdateStepData merges partial into the active step's data.
func (w *Wizard) UpdateStepData(ctx context.Context, partial domain.StepData) {
	w.apply(func(s *domain.State) (*domain.State, bool) {
		return w.machine.UpdateStepData(ctx, s, partial), false
	}, false)
}

// GoNext validates the active step and advances when it is valid.
func (w *Wizard) GoNext(ctx context.Context) bool {
	return w.apply(func(s *domain.State) (*domain.State, bool) {
		return w.machine.Next(ctx, s)
	}, true)
}

// SkipStep advances without validating when the step allows it.
func (w *Wizard) SkipStep(ctx context.Context) bool {
	return w.apply(func(s *domain.State) (*domain.State, bool) {
		return w.machine.Skip(ctx, s)
	}, true)
}

// GoBack returns to the previous visible step.
func (w *Wizard) GoBack(ctx context.Context) bool {
	return w.apply(func(s *domain.State) (*domain.State, bool) {
		return w.machine.Back(ctx, s)
	}, false)
}

// GoToStep jumps to a completed step, the next step when the active one is
// valid, or any earlier step. Other targets are ignored.
func (w *Wizard) GoToStep(ctx context.Context, stepID string) bool {
	return w.apply(func(s *domain.State) (*domain.State, bool) {
		return w.machine.GoTo(ctx, s, stepID)
	}, false)
}

// Complete validates every visible step and finishes the run when all pass.
func (w *Wizard) Complete(ctx context.Context) bool {
	return w.apply(func(s *domain.State) (*domain.State, bool) {
		return w.machine.Complete(ctx, s)
	}, false)
}

// Reset starts the run over with the initial data.
func (w *Wizard) Reset(ctx context.Context) {
	w.apply(func(s *domain.State) (*domain.State, bool) {
		return w.machine.Reset(ctx, s), false
	}, false)
}

// Cancel marks the run as abandoned.
func (w *Wizard) Cancel(ctx context.Context) {
	w.apply(func(s *domain.State) (*domain.State, bool) {
		return w.machine.Cancel(ctx, s), false
	}, false)
}

// Flush blocks until the pending autosave, if any, has run.
func (w *Wizard) Flush() error {
	w.mu.Lock()
	task := w.lastSave
	w.mu.Unlock()
	if task == nil {
		return nil
	}
	return task.Wait()
}

// Close drains pending autosaves. The wizard keeps answering reads afterwards
// but no longer persists.
func (w *Wizard) Close() error {
	w.mu.Lock()
	pool := w.pool
	w.pool = nil
	w.mu.Unlock()
	if pool != nil {
		pool.StopAndWait()
	}
	return nil
}

// apply swaps in the state produced by fn and schedules an autosave when
// persist is set and the transition succeeded.
func (w *Wizard) apply(fn func(*domain.State) (*domain.State, bool), persist bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, ok := fn(w.state)
	w.state = next
	if ok && persist {
		w.autosave()
	}
	return ok
}

// autosave must be called with w.mu held.
func (w *Wizard) autosave() {
	if w.store == nil || w.pool == nil {
		return
	}
	key := w.persistKey()
	snapshot := w.state.Clone()
	w.lastSave = w.pool.Submit(func() {
		if err := w.store.Save(context.Background(), key, snapshot); err != nil {
			w.logger.Error("autosave failed", "run_id", snapshot.RunID, "key", key, "err", err)
			return
		}
		w.logger.Debug("autosaved", "run_id", snapshot.RunID, "key", key, "step", snapshot.CurrentStepID)
	})
}

func (w *Wizard) persistKey() string {
	if key := w.machine.Config().PersistKey; key != "" {
		return key
	}
	return w.runID
}
