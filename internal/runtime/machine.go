package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Machine holds the pure transition functions of a wizard.
// It never mutates the state it receives: every transition returns a clone.
type Machine struct {
	cfg    domain.Config
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	now    func() time.Time
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger sets the structured logger used for guard and validation traces.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) MachineOption {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine validates the config and builds a Machine for it.
func NewMachine(cfg domain.Config, opts ...MachineOption) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		cfg:    cfg,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the config the machine was built with.
func (m *Machine) Config() domain.Config {
	return m.cfg
}

// Start creates the initial state of a run from the config's initial data.
func (m *Machine) Start(ctx context.Context, runID string) (*domain.State, error) {
	data := m.cfg.InitialData.Clone()
	visible := m.cfg.Visible(data)
	if len(visible) == 0 {
		return nil, domain.ErrNoVisibleSteps
	}

	state := domain.NewState(runID, visible[0].ID, data)
	state.Flow = m.cfg.Flow
	state.UpdatedAt = m.now()

	m.logger.Debug("wizard started", "run_id", runID, "step", state.CurrentStepID, "visible", len(visible))
	m.emitStepEnter(ctx, state, state.CurrentStepID)
	return state, nil
}

// Restore checks a snapshot against the config and returns a normalized copy.
func (m *Machine) Restore(snapshot *domain.State) (*domain.State, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", domain.ErrUnknownStep)
	}
	state := snapshot.Clone()
	state.Normalize()

	check := func(kind, id string) error {
		if !m.cfg.Has(id) {
			return fmt.Errorf("%w: snapshot %s references %q", domain.ErrUnknownStep, kind, id)
		}
		return nil
	}
	for id := range state.Data {
		if err := check("data", id); err != nil {
			return nil, err
		}
	}
	for id := range state.Completed {
		if err := check("completed set", id); err != nil {
			return nil, err
		}
	}
	for id := range state.Attempted {
		if err := check("attempted set", id); err != nil {
			return nil, err
		}
	}
	for id := range state.Errors {
		if err := check("errors", id); err != nil {
			return nil, err
		}
	}
	if state.CurrentStepID != "" {
		if err := check("current step", state.CurrentStepID); err != nil {
			return nil, err
		}
	}

	if len(m.cfg.Visible(state.Data)) == 0 {
		return nil, domain.ErrNoVisibleSteps
	}
	if state.Flow == "" {
		state.Flow = m.cfg.Flow
	}
	state.CurrentStepID = m.currentID(state)
	return state, nil
}

// --- Derived values ---

// Visible returns the visible step sequence for the state's data.
func (m *Machine) Visible(s *domain.State) []domain.StepDefinition {
	return m.cfg.Visible(s.Data)
}

// Current resolves the current step, falling back to the first visible step.
func (m *Machine) Current(s *domain.State) (domain.StepDefinition, bool) {
	visible := m.Visible(s)
	idx := indexOf(visible, s.CurrentStepID)
	if idx >= 0 {
		return visible[idx], true
	}
	if len(visible) > 0 {
		return visible[0], true
	}
	return domain.StepDefinition{}, false
}

// Index returns the position of the current step in the visible sequence, or -1.
func (m *Machine) Index(s *domain.State) int {
	visible := m.Visible(s)
	if len(visible) == 0 {
		return -1
	}
	if idx := indexOf(visible, s.CurrentStepID); idx >= 0 {
		return idx
	}
	return 0
}

func (m *Machine) CanGoBack(s *domain.State) bool {
	return m.Index(s) > 0
}

func (m *Machine) CanSkip(s *domain.State) bool {
	step, ok := m.Current(s)
	return ok && step.CanSkip
}

// CanGoNext reports the real-time validity of the current step.
func (m *Machine) CanGoNext(s *domain.State) bool {
	_, ok := m.Current(s)
	return ok && len(m.RealtimeErrors(s)) == 0
}

// IsLast reports whether the current step is the last visible one.
func (m *Machine) IsLast(s *domain.State) bool {
	idx := m.Index(s)
	return idx >= 0 && idx == len(m.Visible(s))-1
}

// RealtimeErrors validates the current step against the current data.
// The result is never stored and is not meant to be shown as text.
func (m *Machine) RealtimeErrors(s *domain.State) []string {
	step, ok := m.Current(s)
	if !ok {
		return nil
	}
	return step.Check(s.Data)
}

// AttemptedErrors returns the stored errors of a step, but only once the user
// tried to leave it.
func (m *Machine) AttemptedErrors(s *domain.State, stepID string) []string {
	if !s.Attempted.Has(stepID) {
		return []string{}
	}
	return append([]string{}, s.Errors[stepID]...)
}

// --- Transitions ---

// UpdateStepData shallow-merges partial into the current step's data.
// Stored errors are left untouched.
func (m *Machine) UpdateStepData(ctx context.Context, s *domain.State, partial domain.StepData) *domain.State {
	next := m.cloneState(s)
	if !m.mutable(next, "update") || len(partial) == 0 {
		return next
	}
	id := m.currentID(next)
	if id == "" {
		return next
	}
	next.CurrentStepID = id

	merged := next.Data[id]
	if merged == nil {
		merged = make(domain.StepData, len(partial))
	}
	for k, v := range partial.Clone() {
		merged[k] = v
	}
	next.Data[id] = merged
	next.UpdatedAt = m.now()
	return next
}

// Next validates the current step, records the attempt and stores the errors.
// On success the step is marked completed and the run advances, unless the
// current step is the last visible one. The bool reports validation success.
func (m *Machine) Next(ctx context.Context, s *domain.State) (*domain.State, bool) {
	next := m.cloneState(s)
	if !m.mutable(next, "next") {
		return next, false
	}
	step, ok := m.Current(next)
	if !ok {
		return next, false
	}
	next.CurrentStepID = step.ID

	errs := normalize(step.Check(next.Data))
	next.Attempted.Add(step.ID)
	next.Errors[step.ID] = errs
	next.UpdatedAt = m.now()

	if len(errs) > 0 {
		m.logger.Debug("step validation failed", "run_id", next.RunID, "step", step.ID, "errors", len(errs))
		m.emitValidationFailed(ctx, next, step.ID, errs)
		return next, false
	}

	m.advance(ctx, next, step.ID)
	return next, true
}

// Skip advances past a skippable step without validating it.
// The bool reports whether the skip happened.
func (m *Machine) Skip(ctx context.Context, s *domain.State) (*domain.State, bool) {
	next := m.cloneState(s)
	if !m.mutable(next, "skip") {
		return next, false
	}
	step, ok := m.Current(next)
	if !ok || !step.CanSkip {
		m.logger.Debug("skip ignored", "run_id", next.RunID, "step", next.CurrentStepID)
		return next, false
	}
	next.CurrentStepID = step.ID
	next.UpdatedAt = m.now()
	m.advance(ctx, next, step.ID)
	return next, true
}

// Back moves to the previous visible step. Both the step returned to and the
// step being left are removed from the completed set.
func (m *Machine) Back(ctx context.Context, s *domain.State) (*domain.State, bool) {
	next := m.cloneState(s)
	if !m.mutable(next, "back") {
		return next, false
	}
	visible := m.Visible(next)
	idx := m.Index(next)
	if idx <= 0 {
		m.logger.Debug("back ignored at first step", "run_id", next.RunID)
		return next, false
	}

	leaving := visible[idx].ID
	target := visible[idx-1].ID
	next.Completed.Remove(leaving)
	next.Completed.Remove(target)
	m.move(ctx, next, leaving, target)
	return next, true
}

// GoTo jumps to target when it is completed, when it is the immediate next
// step and the current step is valid, or when it lies before the current step.
// Any other request is ignored.
func (m *Machine) GoTo(ctx context.Context, s *domain.State, target string) (*domain.State, bool) {
	next := m.cloneState(s)
	if !m.mutable(next, "goto") {
		return next, false
	}
	visible := m.Visible(next)
	idx := m.Index(next)
	targetIdx := indexOf(visible, target)
	if idx < 0 || targetIdx < 0 || targetIdx == idx {
		m.logger.Debug("goto ignored", "run_id", next.RunID, "target", target)
		return next, false
	}
	current := visible[idx].ID

	switch {
	case targetIdx < idx:
		next.Completed.Remove(target)
	case next.Completed.Has(target):
	case targetIdx == idx+1 && m.CanGoNext(next):
		next.Completed.Add(current)
	default:
		m.logger.Debug("goto ignored", "run_id", next.RunID, "target", target, "current", current)
		return next, false
	}

	m.move(ctx, next, current, target)
	return next, true
}

// Complete validates every visible step. Each step is marked attempted and its
// errors stored. On success every visible step is marked completed and the run
// status becomes completed.
func (m *Machine) Complete(ctx context.Context, s *domain.State) (*domain.State, bool) {
	next := m.cloneState(s)
	if next.Status == domain.StatusCancelled {
		return next, false
	}
	visible := m.Visible(next)
	if len(visible) == 0 {
		return next, false
	}

	valid := true
	for _, step := range visible {
		errs := normalize(step.Check(next.Data))
		next.Attempted.Add(step.ID)
		next.Errors[step.ID] = errs
		if len(errs) > 0 {
			valid = false
			m.emitValidationFailed(ctx, next, step.ID, errs)
		}
	}
	next.UpdatedAt = m.now()
	next.CurrentStepID = m.currentID(next)

	if !valid {
		m.logger.Debug("complete rejected", "run_id", next.RunID)
		return next, false
	}

	for _, step := range visible {
		next.Completed.Add(step.ID)
	}
	next.Status = domain.StatusCompleted
	m.logger.Info("wizard completed", "run_id", next.RunID, "flow", next.Flow)
	m.emitRun(ctx, next, domain.EventComplete, m.hooks.OnComplete)
	return next, true
}

// Reset returns the run to its first visible step with the initial data.
func (m *Machine) Reset(ctx context.Context, s *domain.State) *domain.State {
	data := m.cfg.InitialData.Clone()
	if data == nil {
		data = make(domain.Data)
	}
	first := ""
	if visible := m.cfg.Visible(data); len(visible) > 0 {
		first = visible[0].ID
	}
	next := domain.NewState(s.RunID, first, data)
	next.Flow = s.Flow
	next.UpdatedAt = m.now()

	m.logger.Debug("wizard reset", "run_id", next.RunID)
	if first != "" {
		m.emitStepEnter(ctx, next, first)
	}
	return next
}

// Cancel marks the run as abandoned.
func (m *Machine) Cancel(ctx context.Context, s *domain.State) *domain.State {
	next := m.cloneState(s)
	if next.Status != domain.StatusActive {
		return next
	}
	next.Status = domain.StatusCancelled
	next.UpdatedAt = m.now()
	m.logger.Info("wizard cancelled", "run_id", next.RunID, "flow", next.Flow)
	m.emitRun(ctx, next, domain.EventCancel, m.hooks.OnCancel)
	return next
}

// --- Helpers ---

func (m *Machine) advance(ctx context.Context, s *domain.State, from string) {
	s.Completed.Add(from)

	visible := m.Visible(s)
	idx := indexOf(visible, from)
	if idx < 0 || idx == len(visible)-1 {
		return
	}
	m.move(ctx, s, from, visible[idx+1].ID)
}

func (m *Machine) move(ctx context.Context, s *domain.State, from, to string) {
	m.emitStepLeave(ctx, s, from)
	s.CurrentStepID = to
	s.UpdatedAt = m.now()
	m.logger.Debug("step changed", "run_id", s.RunID, "from", from, "to", to)
	m.emitStepEnter(ctx, s, to)
}

func (m *Machine) currentID(s *domain.State) string {
	step, ok := m.Current(s)
	if !ok {
		return s.CurrentStepID
	}
	return step.ID
}

func (m *Machine) mutable(s *domain.State, op string) bool {
	if s.Status != domain.StatusActive {
		m.logger.Debug("operation ignored on closed run", "run_id", s.RunID, "op", op, "status", s.Status)
		return false
	}
	return true
}

func (m *Machine) cloneState(s *domain.State) *domain.State {
	next := s.Clone()
	next.Normalize()
	return next
}

func indexOf(steps []domain.StepDefinition, id string) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func normalize(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	return append([]string{}, errs...)
}
