package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/google/uuid"
)

// ErrUnknownOperation is returned by Service.Do for an unsupported operation kind.
var ErrUnknownOperation = errors.New("unknown operation")

// OpKind names a wizard operation applied to a stored run.
type OpKind string

const (
	OpUpdate   OpKind = "update"
	OpNext     OpKind = "next"
	OpBack     OpKind = "back"
	OpSkip     OpKind = "skip"
	OpGoTo     OpKind = "goto"
	OpComplete OpKind = "complete"
	OpCancel   OpKind = "cancel"
	OpReset    OpKind = "reset"
)

// Operation is one request against a run.
type Operation struct {
	Kind OpKind
	// Data is merged into the current step for OpUpdate.
	Data domain.StepData
	// Step is the target of OpGoTo.
	Step string
}

// StepInfo describes the active step to remote hosts.
type StepInfo struct {
	ID       string        `json:"id"`
	Title    string        `json:"title,omitempty"`
	Subtitle string        `json:"subtitle,omitempty"`
	Fields   schema.Schema `json:"fields,omitempty"`
}

// View is the render contract of a stored run, the serializable twin of
// stepwise.StepProps.
type View struct {
	RunID          string           `json:"run_id"`
	Flow           string           `json:"flow"`
	Status         domain.RunStatus `json:"status"`
	Step           StepInfo         `json:"step"`
	StepIndex      int              `json:"step_index"`
	StepCount      int              `json:"step_count"`
	VisibleSteps   []string         `json:"visible_steps"`
	IsLastStep     bool             `json:"is_last_step"`
	CanGoNext      bool             `json:"can_go_next"`
	CanGoBack      bool             `json:"can_go_back"`
	CanSkip        bool             `json:"can_skip"`
	CanCancel      bool             `json:"can_cancel"`
	Data           domain.StepData  `json:"data"`
	Errors         []string         `json:"errors"`
	RealtimeErrors []string         `json:"realtime_errors"`
	AllData        domain.Data      `json:"all_data"`
}

// Result is the outcome of an operation.
type Result struct {
	View
	// OK reports whether the transition happened.
	OK   bool              `json:"ok"`
	Diff *domain.StateDiff `json:"diff,omitempty"`
}

// Service applies wizard operations to runs kept in a store. Each call loads
// the snapshot, rebuilds the wizard from its flow, applies one operation and
// saves the result under the run lock.
type Service struct {
	manager *Manager
	flows   ports.FlowLoader
	sink    ports.CompletionSink
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSink publishes completed runs.
func WithSink(sink ports.CompletionSink) ServiceOption {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithServiceLogger sets the logger handed to every rebuilt wizard.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithServiceClock pins the clock used by validators and completion stamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service over a manager and a flow source.
func NewService(manager *Manager, flows ports.FlowLoader, opts ...ServiceOption) *Service {
	s := &Service{
		manager: manager,
		flows:   flows,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flows lists the flows runs can be started from.
func (s *Service) Flows(ctx context.Context) ([]string, error) {
	return s.flows.ListFlows(ctx)
}

// Flow builds the named flow.
func (s *Service) Flow(ctx context.Context, name string) (domain.Config, error) {
	return s.flows.LoadFlow(ctx, name)
}

// Runs lists the stored run ids.
func (s *Service) Runs(ctx context.Context) ([]string, error) {
	return s.manager.List(ctx)
}

// Start creates a run of flow, seeding initial on top of the flow's initial
// data. An empty runID gets a generated one. Starting an existing run id
// resumes it; created reports which happened.
func (s *Service) Start(ctx context.Context, flow, runID string, initial domain.Data) (view *View, created bool, err error) {
	cfg, err := s.flows.LoadFlow(ctx, flow)
	if err != nil {
		return nil, false, err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	if len(initial) > 0 {
		merged := cfg.InitialData.Clone()
		if merged == nil {
			merged = domain.Data{}
		}
		for id, values := range initial {
			step := merged[id].Clone()
			if step == nil {
				step = domain.StepData{}
			}
			for k, v := range values {
				step[k] = v
			}
			merged[id] = step
		}
		cfg.InitialData = merged
	}

	state, err := s.manager.LoadOrStart(ctx, runID, func(ctx context.Context) (*domain.State, error) {
		created = true
		w, err := stepwise.New(cfg, s.wizardOptions(stepwise.WithRunID(runID))...)
		if err != nil {
			return nil, err
		}
		defer w.Close()
		return w.State(), nil
	})
	if err != nil {
		return nil, false, err
	}
	if !created && state.Flow != "" && state.Flow != cfg.Flow {
		return nil, false, fmt.Errorf("run %q belongs to flow %q", runID, state.Flow)
	}

	view, err = s.view(ctx, state)
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("run started", "run_id", runID, "flow", cfg.Flow, "created", created)
	return view, created, nil
}

// Get returns the view of a stored run.
func (s *Service) Get(ctx context.Context, runID string) (*View, error) {
	state, err := s.manager.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, state)
}

// State returns the raw snapshot of a stored run.
func (s *Service) State(ctx context.Context, runID string) (*domain.State, error) {
	return s.manager.Load(ctx, runID)
}

// Delete removes a stored run.
func (s *Service) Delete(ctx context.Context, runID string) error {
	return s.manager.Delete(ctx, runID)
}

// Do applies op to the run and saves the new snapshot. Mutations of a run
// that is no longer active fail with domain.ErrRunClosed; Reset is always
// accepted. A completed run is published to the sink after it is saved.
func (s *Service) Do(ctx context.Context, runID string, op Operation) (*Result, error) {
	var (
		before *domain.State
		result *Result
	)
	after, err := s.manager.Update(ctx, runID, func(ctx context.Context, current *domain.State) (*domain.State, error) {
		if current.Status != domain.StatusActive && op.Kind != OpReset {
			return nil, fmt.Errorf("%s %q: %w", op.Kind, runID, domain.ErrRunClosed)
		}
		cfg, err := s.flows.LoadFlow(ctx, current.Flow)
		if err != nil {
			return nil, err
		}

		before = current.Clone()
		ctl, err := stepwise.NewController(cfg, nil, nil,
			stepwise.WithWizardOptions(s.wizardOptions(stepwise.WithSnapshot(current))...))
		if err != nil {
			return nil, err
		}
		defer ctl.Close()

		ok, err := apply(ctx, ctl, op)
		if err != nil {
			return nil, err
		}
		result = &Result{View: viewOf(ctl), OK: ok}
		return ctl.Wizard().State(), nil
	})
	if err != nil {
		return nil, err
	}

	result.Diff = domain.Diff(before, after)
	s.logger.Debug("operation applied", "run_id", runID, "op", op.Kind, "ok", result.OK)

	if op.Kind == OpComplete || op.Kind == OpNext {
		if before.Status == domain.StatusActive && after.Status == domain.StatusCompleted {
			s.publish(ctx, after)
		}
	}
	return result, nil
}

func apply(ctx context.Context, ctl *stepwise.Controller, op Operation) (bool, error) {
	w := ctl.Wizard()
	switch op.Kind {
	case OpUpdate:
		ctl.Update(ctx, op.Data)
		return true, nil
	case OpNext:
		return ctl.Next(ctx)
	case OpBack:
		return ctl.Back(ctx), nil
	case OpSkip:
		return ctl.Skip(ctx), nil
	case OpGoTo:
		return w.GoToStep(ctx, op.Step), nil
	case OpComplete:
		return ctl.Save(ctx)
	case OpCancel:
		// The request is the confirmation.
		return ctl.Cancel(ctx)
	case OpReset:
		w.Reset(ctx)
		return true, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Kind)
}

func (s *Service) publish(ctx context.Context, state *domain.State) {
	if s.sink == nil {
		return
	}
	completion := domain.Completion{
		RunID:       state.RunID,
		Flow:        state.Flow,
		Data:        state.Data.Clone(),
		CompletedAt: s.now(),
	}
	if err := s.sink.Publish(ctx, completion); err != nil {
		s.logger.Error("failed to publish completion", "run_id", state.RunID, "err", err)
	}
}

func (s *Service) view(ctx context.Context, state *domain.State) (*View, error) {
	cfg, err := s.flows.LoadFlow(ctx, state.Flow)
	if err != nil {
		return nil, err
	}
	ctl, err := stepwise.NewController(cfg, nil, nil,
		stepwise.WithWizardOptions(s.wizardOptions(stepwise.WithSnapshot(state))...))
	if err != nil {
		return nil, err
	}
	defer ctl.Close()
	v := viewOf(ctl)
	return &v, nil
}

func (s *Service) wizardOptions(extra ...stepwise.Option) []stepwise.Option {
	return append([]stepwise.Option{
		stepwise.WithLogger(s.logger),
		stepwise.WithClock(s.now),
	}, extra...)
}

func viewOf(ctl *stepwise.Controller) View {
	w := ctl.Wizard()
	props := ctl.Props()

	visible := w.VisibleSteps()
	ids := make([]string, len(visible))
	for i, step := range visible {
		ids[i] = step.ID
	}
	fields, _ := props.Step.Renderer.(schema.Schema)

	return View{
		RunID:  w.RunID(),
		Flow:   w.Config().Flow,
		Status: w.Status(),
		Step: StepInfo{
			ID:       props.Step.ID,
			Title:    props.Step.Title,
			Subtitle: props.Step.Subtitle,
			Fields:   fields,
		},
		StepIndex:      props.StepIndex,
		StepCount:      props.StepCount,
		VisibleSteps:   ids,
		IsLastStep:     props.IsLastStep,
		CanGoNext:      props.CanGoNext,
		CanGoBack:      props.CanGoBack,
		CanSkip:        props.CanSkip,
		CanCancel:      props.CanCancel,
		Data:           props.Data,
		Errors:         nonNil(props.Errors),
		RealtimeErrors: nonNil(w.RealtimeErrors()),
		AllData:        props.AllWizardData,
	}
}

func nonNil(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	return errs
}
