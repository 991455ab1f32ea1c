package ports

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

// CompletionSink receives the data of completed runs.
// It is the hand-off point to whatever stores maintenance logs.
type CompletionSink interface {
	Publish(ctx context.Context, completion domain.Completion) error
}

// FlowLoader resolves wizard configs by name from an external source.
type FlowLoader interface {
	// LoadFlow returns the config of the named flow.
	LoadFlow(ctx context.Context, name string) (domain.Config, error)

	// ListFlows returns the names of the available flows.
	ListFlows(ctx context.Context) ([]string, error)
}
