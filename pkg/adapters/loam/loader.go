package loam

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"facette.io/natsort"
	"github.com/aretw0/loam"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/dsl"
	"github.com/aretw0/stepwise/pkg/registry"
	"github.com/aretw0/stepwise/pkg/schema"
)

// Loader builds wizard flows from step documents in a Loam repository.
// Steps of a flow are ordered by natural sort of their file names, so
// "2-services.md" comes before "10-review.md". A leading number and
// separator are dropped from the derived step id.
type Loader struct {
	Repo *loam.TypedRepository[StepMetadata]

	// DefaultFlow names the flow of documents at the repository root that
	// declare no flow.
	DefaultFlow string

	now func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithDefaultFlow sets the flow of root documents without a flow key.
func WithDefaultFlow(name string) Option {
	return func(l *Loader) {
		l.DefaultFlow = name
	}
}

// WithClock pins the clock of date validators.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		l.now = now
	}
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[StepMetadata], opts ...Option) *Loader {
	l := &Loader{
		Repo:        repo,
		DefaultFlow: "default",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open initializes a read-only Loam repository at dir. Root documents without
// a flow key belong to a flow named after the directory.
func Open(dir string, opts ...Option) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	opts = append([]Option{WithDefaultFlow(registry.Name(filepath.Base(absPath)))}, opts...)
	return New(loam.NewTypedRepository[StepMetadata](repo), opts...), nil
}

type stepDoc struct {
	name string
	id   string
	meta StepMetadata
}

// ListFlows implements ports.FlowLoader.
func (l *Loader) ListFlows(ctx context.Context) ([]string, error) {
	flows, err := l.scan(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(flows))
	for name := range flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadFlow implements ports.FlowLoader.
func (l *Loader) LoadFlow(ctx context.Context, name string) (domain.Config, error) {
	flows, err := l.scan(ctx)
	if err != nil {
		return domain.Config{}, err
	}
	key := registry.Name(name)
	docs, ok := flows[key]
	if !ok {
		return domain.Config{}, fmt.Errorf("%w: %s", registry.ErrFlowNotFound, name)
	}
	return l.build(ctx, key, docs)
}

// scan groups the repository documents by flow.
func (l *Loader) scan(ctx context.Context) (map[string][]stepDoc, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	flows := make(map[string][]stepDoc)
	for _, doc := range docs {
		name := trimExtension(doc.ID)
		flow := doc.Data.Flow
		if flow == "" {
			flow = l.DefaultFlow
			if dir := path.Dir(name); dir != "." {
				flow = dir
			}
		}
		id := doc.Data.ID
		if id == "" {
			id = stepID(path.Base(name))
		}
		key := registry.Name(flow)
		flows[key] = append(flows[key], stepDoc{
			name: name,
			id:   trimExtension(id),
			meta: doc.Data,
		})
	}
	return flows, nil
}

func (l *Loader) build(ctx context.Context, flow string, docs []stepDoc) (domain.Config, error) {
	sort.SliceStable(docs, func(i, j int) bool {
		return natsort.Compare(docs[i].name, docs[j].name)
	})

	b := dsl.New(flow)
	if l.now != nil {
		b.Clock(l.now)
	}
	initial := domain.Data{}
	seen := make(map[string]string, len(docs))

	for _, doc := range docs {
		if other, ok := seen[doc.id]; ok {
			return domain.Config{}, fmt.Errorf("collision detected: step '%s' is defined in both '%s' and '%s'", doc.id, other, doc.name)
		}
		seen[doc.id] = doc.name

		meta := doc.meta
		sb := b.Step(doc.id).Title(meta.Title)
		subtitle := meta.Subtitle
		if subtitle == "" {
			// Listings carry metadata only.
			full, err := l.Repo.Get(ctx, doc.name)
			if err != nil {
				return domain.Config{}, fmt.Errorf("loam get failed for %s: %w", doc.name, err)
			}
			subtitle = firstParagraph(strings.TrimSpace(full.Content))
		}
		sb.Subtitle(subtitle)

		if len(meta.Fields) > 0 {
			types, err := normalizeFields(meta.Fields)
			if err != nil {
				return domain.Config{}, fmt.Errorf("step %s: %w", doc.id, err)
			}
			fields, err := schema.ParseTypeMap(types)
			if err != nil {
				return domain.Config{}, fmt.Errorf("step %s: %w", doc.id, err)
			}
			sb.Fields(fields...)
		}
		if meta.Skippable {
			sb.Skippable()
		}
		if meta.ShowWhen != "" {
			step, key, ok := strings.Cut(meta.ShowWhen, ".")
			if !ok || step == "" || key == "" {
				return domain.Config{}, fmt.Errorf("step %s: show_when must be step.field, got %q", doc.id, meta.ShowWhen)
			}
			sb.ShowWhen(step, key)
		}
		if meta.AllowCancel {
			b.AllowCancel()
		}
		if len(meta.Initial) > 0 {
			initial[doc.id] = domain.StepData(meta.Initial).Clone()
		}
	}

	if len(initial) > 0 {
		b.InitialData(initial)
	}
	return b.Build()
}

func normalizeFields(raw map[string]any) (map[string]string, error) {
	normalized := make(map[string]string, len(raw))
	for key, value := range raw {
		typeStr, err := formatSchemaType(value)
		if err != nil {
			return nil, fmt.Errorf("fields.%s: %w", key, err)
		}
		normalized[key] = typeStr
	}
	return normalized, nil
}

func formatSchemaType(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []any:
		if len(v) != 1 {
			return "", fmt.Errorf("expected single element list for slice type")
		}
		inner, err := formatSchemaType(v[0])
		if err != nil {
			return "", err
		}
		return "[" + inner + "]", nil
	case []string:
		if len(v) != 1 {
			return "", fmt.Errorf("expected single element list for slice type")
		}
		return "[" + v[0] + "]", nil
	default:
		return "", fmt.Errorf("expected string or list, got %T", value)
	}
}

// stepID drops a numeric ordering prefix: "01-basic" -> "basic".
func stepID(name string) string {
	trimmed := strings.TrimLeft(name, "0123456789")
	if trimmed == name {
		return name
	}
	trimmed = strings.TrimLeft(trimmed, "-_. ")
	if trimmed == "" {
		return name
	}
	return trimmed
}

func firstParagraph(body string) string {
	first, _, _ := strings.Cut(body, "\n\n")
	return strings.Join(strings.Fields(first), " ")
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
