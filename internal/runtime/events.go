package runtime

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

func (m *Machine) emitStepEnter(ctx context.Context, s *domain.State, stepID string) {
	if m.hooks.OnStepEnter == nil {
		return
	}
	m.hooks.OnStepEnter(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: m.now(), Type: domain.EventStepEnter, RunID: s.RunID},
		StepID:    stepID,
	})
}

func (m *Machine) emitStepLeave(ctx context.Context, s *domain.State, stepID string) {
	if m.hooks.OnStepLeave == nil {
		return
	}
	m.hooks.OnStepLeave(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: m.now(), Type: domain.EventStepLeave, RunID: s.RunID},
		StepID:    stepID,
	})
}

func (m *Machine) emitValidationFailed(ctx context.Context, s *domain.State, stepID string, errs []string) {
	if m.hooks.OnValidationFailed == nil {
		return
	}
	m.hooks.OnValidationFailed(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: m.now(), Type: domain.EventValidationFailed, RunID: s.RunID},
		StepID:    stepID,
		Errors:    append([]string{}, errs...),
	})
}

func (m *Machine) emitRun(ctx context.Context, s *domain.State, typ domain.EventType, hook func(context.Context, *domain.RunEvent)) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: m.now(), Type: typ, RunID: s.RunID},
		Flow:      s.Flow,
	})
}
