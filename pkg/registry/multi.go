package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// Multi chains flow loaders. Lookups try each loader in order and the first
// one that knows the flow wins.
type Multi struct {
	loaders []ports.FlowLoader
}

// NewMulti combines loaders. Nil loaders are ignored.
func NewMulti(loaders ...ports.FlowLoader) *Multi {
	m := &Multi{}
	for _, l := range loaders {
		if l != nil {
			m.loaders = append(m.loaders, l)
		}
	}
	return m
}

// LoadFlow implements ports.FlowLoader.
func (m *Multi) LoadFlow(ctx context.Context, name string) (domain.Config, error) {
	for _, l := range m.loaders {
		cfg, err := l.LoadFlow(ctx, name)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, ErrFlowNotFound) {
			return domain.Config{}, err
		}
	}
	return domain.Config{}, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
}

// ListFlows implements ports.FlowLoader. Names are merged and sorted.
func (m *Multi) ListFlows(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, l := range m.loaders {
		flows, err := l.ListFlows(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range flows {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
