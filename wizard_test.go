package stepwise_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/dsl"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return today }

// threeSteps is basic (validated), photos (skippable, shown on wantsPhotos),
// review (always valid).
func threeSteps(t *testing.T) domain.Config {
	t.Helper()
	cfg, err := dsl.New("test").
		Clock(clock).
		AllowCancel().
		Step("basic").Title("Basic Info").
		Field("mileage", schema.Mileage()).
		Field("wantsPhotos", schema.Optional(schema.Bool())).
		Step("photos").Skippable().ShowWhen("basic", "wantsPhotos").
		Step("review").
		Build()
	require.NoError(t, err)
	return cfg
}

func newWizard(t *testing.T, cfg domain.Config, opts ...stepwise.Option) *stepwise.Wizard {
	t.Helper()
	opts = append([]stepwise.Option{
		stepwise.WithLogger(slogt.New(t)),
		stepwise.WithClock(clock),
	}, opts...)
	w, err := stepwise.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWizard_ErrorsOnlyAfterAttempt(t *testing.T) {
	ctx := context.Background()
	w := newWizard(t, threeSteps(t))

	assert.False(t, w.CanGoNext())
	assert.NotEmpty(t, w.RealtimeErrors())
	assert.Empty(t, w.Errors("basic"), "nothing shown before the first attempt")

	assert.False(t, w.GoNext(ctx))
	assert.Equal(t, []string{"Mileage is required"}, w.Errors("basic"))
	assert.True(t, w.Attempted("basic"))

	w.UpdateStepData(ctx, domain.StepData{"wantsPhotos": false})
	assert.Equal(t, []string{"Mileage is required"}, w.Errors("basic"), "unrelated edits keep stored errors")

	w.UpdateStepData(ctx, domain.StepData{"mileage": "75,000"})
	assert.True(t, w.CanGoNext())
	assert.Equal(t, []string{"Mileage is required"}, w.Errors("basic"), "fixing data does not clear until the next attempt")

	assert.True(t, w.GoNext(ctx))
	assert.Equal(t, "review", w.CurrentStep().ID)
	assert.Empty(t, w.Errors("basic"))
	assert.True(t, w.Completed("basic"))
}

func TestWizard_ConditionalStep(t *testing.T) {
	ctx := context.Background()
	w := newWizard(t, threeSteps(t))

	assert.Len(t, w.VisibleSteps(), 2)
	w.UpdateStepData(ctx, domain.StepData{"mileage": "10", "wantsPhotos": true})
	assert.Len(t, w.VisibleSteps(), 3)

	require.True(t, w.GoNext(ctx))
	assert.Equal(t, "photos", w.CurrentStep().ID)
	assert.True(t, w.CanSkip())
	assert.True(t, w.SkipStep(ctx))
	assert.Equal(t, "review", w.CurrentStep().ID)
	assert.Equal(t, 2, w.StepIndex())
	assert.True(t, w.IsLastStep())
}

func TestWizard_BackAndGoTo(t *testing.T) {
	ctx := context.Background()
	w := newWizard(t, threeSteps(t))

	w.UpdateStepData(ctx, domain.StepData{"mileage": "10"})
	require.True(t, w.GoNext(ctx))
	assert.True(t, w.CanGoBack())

	assert.False(t, w.GoToStep(ctx, "photos"), "hidden steps are not navigable")
	assert.True(t, w.GoBack(ctx))
	assert.Equal(t, "basic", w.CurrentStep().ID)
	assert.False(t, w.Completed("basic"))
	assert.True(t, w.Attempted("basic"), "attempted survives going back")

	assert.True(t, w.GoToStep(ctx, "review"), "next step is reachable when the current one is valid")
	assert.True(t, w.Completed("basic"))
	require.True(t, w.GoBack(ctx))
	assert.False(t, w.CanGoBack())
	assert.False(t, w.GoBack(ctx), "cannot go before the first step")
}

func TestWizard_CompleteAndReset(t *testing.T) {
	ctx := context.Background()
	cfg := threeSteps(t)
	cfg.InitialData = domain.Data{"basic": {"mileage": "5"}}
	w := newWizard(t, cfg)

	assert.True(t, w.GoToStep(ctx, "review"))
	w.UpdateStepData(ctx, domain.StepData{"seen": true})
	require.True(t, w.GoBack(ctx))
	w.UpdateStepData(ctx, domain.StepData{"mileage": "1.5"})

	assert.False(t, w.Complete(ctx))
	assert.Equal(t, []string{schema.MsgMileageDecimals}, w.Errors("basic"))
	assert.Empty(t, w.Errors("review"))
	assert.True(t, w.Attempted("review"))

	w.UpdateStepData(ctx, domain.StepData{"mileage": "15"})
	assert.True(t, w.Complete(ctx))
	assert.Equal(t, domain.StatusCompleted, w.Status())

	w.Reset(ctx)
	assert.Equal(t, domain.StatusActive, w.Status())
	assert.Equal(t, "basic", w.CurrentStep().ID)
	assert.Equal(t, domain.StepData{"mileage": "5"}, w.StepData("basic"))
	assert.False(t, w.Attempted("basic"))
	assert.False(t, w.Completed("basic"))
}

func TestWizard_DataIsACopy(t *testing.T) {
	ctx := context.Background()
	w := newWizard(t, threeSteps(t))
	w.UpdateStepData(ctx, domain.StepData{"mileage": "10"})

	data := w.Data()
	data["basic"]["mileage"] = "tampered"
	assert.Equal(t, "10", w.StepData("basic")["mileage"])
}

func TestWizard_AutosaveAfterNavigation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cfg := threeSteps(t)
	cfg.PersistKey = "draft"
	w := newWizard(t, cfg, stepwise.WithStore(store), stepwise.WithRunID("run-1"))

	w.UpdateStepData(ctx, domain.StepData{"mileage": "10"})
	require.NoError(t, w.Flush())
	_, err := store.Load(ctx, "draft")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "edits alone are not saved")

	require.True(t, w.GoNext(ctx))
	require.NoError(t, w.Flush())

	saved, err := store.Load(ctx, "draft")
	require.NoError(t, err)
	assert.Equal(t, "run-1", saved.RunID)
	assert.Equal(t, "review", saved.CurrentStepID)
	assert.True(t, saved.Completed.Has("basic"))

	resumed := newWizard(t, cfg, stepwise.WithSnapshot(saved))
	assert.Equal(t, "run-1", resumed.RunID())
	assert.Equal(t, "review", resumed.CurrentStep().ID)
	assert.Equal(t, "10", resumed.StepData("basic")["mileage"])
}

func TestWizard_SnapshotKeepsItsRunID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cfg := threeSteps(t)

	saved := newWizard(t, cfg, stepwise.WithRunID("run-1")).State()
	w := newWizard(t, cfg, stepwise.WithStore(store), stepwise.WithSnapshot(saved), stepwise.WithRunID("other"))
	assert.Equal(t, "run-1", w.RunID())
	assert.Equal(t, "run-1", w.State().RunID)

	w.UpdateStepData(ctx, domain.StepData{"mileage": "10"})
	require.True(t, w.GoNext(ctx))
	require.NoError(t, w.Flush())

	_, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	_, err = store.Load(ctx, "other")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	saved.RunID = ""
	named := newWizard(t, cfg, stepwise.WithSnapshot(saved), stepwise.WithRunID("named"))
	assert.Equal(t, "named", named.RunID())
	assert.Equal(t, "named", named.State().RunID)
}

type failingStore struct {
	*memory.Store
	mu    sync.Mutex
	calls int
}

func (s *failingStore) Save(context.Context, string, *domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("disk full")
}

func TestWizard_FailedAutosaveKeepsNavigation(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.NewStore()}
	w := newWizard(t, threeSteps(t), stepwise.WithStore(store))

	w.UpdateStepData(ctx, domain.StepData{"mileage": "10"})
	require.True(t, w.GoNext(ctx))
	require.NoError(t, w.Close())

	assert.Equal(t, "review", w.CurrentStep().ID)
	assert.Equal(t, 1, store.calls)
}

func TestWizard_ConstructionErrors(t *testing.T) {
	_, err := stepwise.New(domain.Config{})
	assert.ErrorIs(t, err, domain.ErrNoSteps)

	cfg := threeSteps(t)
	cfg.InitialData = domain.Data{"ghost": {}}
	_, err = stepwise.New(cfg)
	assert.ErrorIs(t, err, domain.ErrUnknownStep)

	_, err = stepwise.New(threeSteps(t), stepwise.WithSnapshot(&domain.State{CurrentStepID: "nowhere"}))
	assert.ErrorIs(t, err, domain.ErrUnknownStep)
}

func TestWizard_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	w := newWizard(t, threeSteps(t), stepwise.WithStore(memory.NewStore()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				w.UpdateStepData(ctx, domain.StepData{"mileage": "10"})
				w.GoNext(ctx)
				_ = w.RealtimeErrors()
				w.GoBack(ctx)
			}
		}()
	}
	wg.Wait()
	assert.Contains(t, []string{"basic", "review"}, w.CurrentStep().ID)
}

func TestWizard_Hooks(t *testing.T) {
	ctx := context.Background()
	var entered, failed []string
	var completed int
	hooks := domain.LifecycleHooks{
		OnStepEnter:        func(_ context.Context, e *domain.StepEvent) { entered = append(entered, e.StepID) },
		OnValidationFailed: func(_ context.Context, e *domain.StepEvent) { failed = append(failed, e.StepID) },
		OnComplete:         func(context.Context, *domain.RunEvent) { completed++ },
	}
	w := newWizard(t, threeSteps(t), stepwise.WithLifecycleHooks(hooks))

	w.GoNext(ctx)
	w.UpdateStepData(ctx, domain.StepData{"mileage": "10"})
	w.GoNext(ctx)
	w.Complete(ctx)

	assert.Equal(t, []string{"basic", "review"}, entered)
	assert.Equal(t, []string{"basic"}, failed)
	assert.Equal(t, 1, completed)
}
