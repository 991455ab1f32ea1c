package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// Mask replaces field values whose key matches a PII pattern.
const Mask = "***"

// DefaultPIIPatterns cover the contact details a shop step may collect.
var DefaultPIIPatterns = []string{`(?i)phone`, `(?i)e-?mail`, `(?i)(^|_)vin($|_)`, `(?i)plate`}

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks step fields whose key
// matches any of the patterns before the snapshot reaches the store.
// Masking is one-way: loaded runs carry the mask, not the value.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, runID string, state *domain.State) error {
	// Callers keep using state after Save.
	masked := state.Clone()
	for _, step := range masked.Data {
		maskMap(step, m.patterns)
	}
	return m.next.Save(ctx, runID, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.State, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matches(k, patterns) {
			m[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			maskMap(sub, patterns)
		}
	}
}

func matches(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
