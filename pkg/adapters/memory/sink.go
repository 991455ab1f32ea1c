package memory

import (
	"context"
	"sync"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Sink implements ports.CompletionSink by keeping completions in memory.
type Sink struct {
	mu          sync.Mutex
	completions []domain.Completion
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Publish records a copy of the completion.
func (s *Sink) Publish(ctx context.Context, c domain.Completion) error {
	c.Data = c.Data.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, c)
	return nil
}

// Completions returns the recorded completions in publish order.
func (s *Sink) Completions() []domain.Completion {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Completion, len(s.completions))
	copy(out, s.completions)
	return out
}
