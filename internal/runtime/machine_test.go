package runtime_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/aretw0/stepwise/internal/runtime"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, time.May, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return today }

func twoStepConfig() domain.Config {
	return domain.Config{
		Steps: []domain.StepDefinition{
			{
				ID: "basic",
				Validate: schema.StepValidatorAt(schema.Schema{
					{Key: "date", Type: schema.Date("Service date")},
					{Key: "mileage", Type: schema.Mileage()},
				}, clock),
			},
			{ID: "confirm"},
		},
	}
}

func newMachine(t *testing.T, cfg domain.Config, opts ...runtime.MachineOption) (*runtime.Machine, *domain.State) {
	t.Helper()
	opts = append(opts, runtime.WithClock(clock))
	m, err := runtime.NewMachine(cfg, opts...)
	require.NoError(t, err)
	s, err := m.Start(context.Background(), "run-1")
	require.NoError(t, err)
	return m, s
}

func TestMachine_DecimalMileageBlocksAdvance(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, twoStepConfig())

	s = m.UpdateStepData(ctx, s, domain.StepData{"date": "2026-05-02", "mileage": "12.5"})
	s, ok := m.Next(ctx, s)

	assert.False(t, ok)
	assert.Equal(t, []string{"Odometer reading must be a whole number (no decimals)"}, s.Errors["basic"])
	assert.Equal(t, "basic", s.CurrentStepID)
	assert.Equal(t, []string{"Odometer reading must be a whole number (no decimals)"}, m.AttemptedErrors(s, "basic"))
}

func TestMachine_AdvanceAndBack(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, twoStepConfig())

	s = m.UpdateStepData(ctx, s, domain.StepData{"date": today.Format(time.DateOnly), "mileage": "75,000"})
	s, ok := m.Next(ctx, s)
	require.True(t, ok)
	assert.Equal(t, "confirm", s.CurrentStepID)
	assert.Equal(t, []string{"basic"}, s.Completed.IDs())

	s, ok = m.Back(ctx, s)
	require.True(t, ok)
	assert.Equal(t, "basic", s.CurrentStepID)
	assert.Empty(t, s.Completed.IDs())
}

func TestMachine_ConditionalVisibility(t *testing.T) {
	ctx := context.Background()
	cfg := domain.Config{Steps: []domain.StepDefinition{
		{ID: "basic"},
		{ID: "photos", ShouldShow: func(d domain.Data) bool { return d["basic"]["wantsPhotos"] == true }},
		{ID: "review"},
	}}
	m, s := newMachine(t, cfg)

	ids := func(s *domain.State) []string {
		var out []string
		for _, step := range m.Visible(s) {
			out = append(out, step.ID)
		}
		return out
	}

	assert.Equal(t, []string{"basic", "review"}, ids(s))
	s, _ = m.Next(ctx, s)
	assert.Equal(t, "review", s.CurrentStepID)
	assert.Equal(t, 1, m.Index(s))

	s.Data["basic"] = domain.StepData{"wantsPhotos": false}
	assert.Equal(t, []string{"basic", "review"}, ids(s))

	s.Data["basic"] = domain.StepData{"wantsPhotos": true}
	assert.Equal(t, []string{"basic", "photos", "review"}, ids(s))
	assert.Equal(t, 2, m.Index(s))
}

func TestMachine_CurrentFallsBackWhenHidden(t *testing.T) {
	ctx := context.Background()
	cfg := domain.Config{Steps: []domain.StepDefinition{
		{ID: "basic"},
		{ID: "photos", ShouldShow: func(d domain.Data) bool { return d["basic"]["wantsPhotos"] == true }},
		{ID: "review"},
	}}
	m, s := newMachine(t, cfg)

	s = m.UpdateStepData(ctx, s, domain.StepData{"wantsPhotos": true})
	s, _ = m.Next(ctx, s)
	require.Equal(t, "photos", s.CurrentStepID)

	s.Data["basic"]["wantsPhotos"] = false
	cur, ok := m.Current(s)
	require.True(t, ok)
	assert.Equal(t, "basic", cur.ID)
	assert.Equal(t, 0, m.Index(s))
	assert.False(t, m.CanGoBack(s))
}

func threeStepConfig() domain.Config {
	required := func(field string) domain.ValidateFunc {
		return func(step domain.StepData, _ domain.Data) []string {
			if v, _ := step[field].(string); v == "" {
				return []string{field + " is required"}
			}
			return nil
		}
	}
	return domain.Config{Steps: []domain.StepDefinition{
		{ID: "step1", Validate: required("a")},
		{ID: "step2"},
		{ID: "step3", Validate: required("c")},
	}}
}

func TestMachine_CompleteValidatesUnvisitedSteps(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, threeStepConfig())

	s = m.UpdateStepData(ctx, s, domain.StepData{"a": "ok"})
	s, ok := m.Complete(ctx, s)

	assert.False(t, ok)
	assert.Equal(t, []string{"c is required"}, s.Errors["step3"])
	assert.Equal(t, []string{}, s.Errors["step1"])
	assert.Equal(t, "step1", s.CurrentStepID)
	assert.Empty(t, s.Completed.IDs())
	assert.Equal(t, domain.StatusActive, s.Status)
}

func TestMachine_CompleteSucceedsWhenAllValid(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, threeStepConfig())

	s = m.UpdateStepData(ctx, s, domain.StepData{"a": "ok"})
	s.Data["step3"] = domain.StepData{"c": "ok"}

	s, ok := m.Complete(ctx, s)
	require.True(t, ok)
	assert.Equal(t, []string{"step1", "step2", "step3"}, s.Completed.IDs())
	assert.Equal(t, domain.StatusCompleted, s.Status)

	after, ok := m.Next(ctx, s)
	assert.False(t, ok)
	assert.Equal(t, s.CurrentStepID, after.CurrentStepID)
}

func TestMachine_ErrorsPersistAcrossEdits(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, twoStepConfig())

	s = m.UpdateStepData(ctx, s, domain.StepData{"date": "2026-05-01", "mileage": "12.5"})
	s, _ = m.Next(ctx, s)
	stored := append([]string{}, s.Errors["basic"]...)

	s = m.UpdateStepData(ctx, s, domain.StepData{"notes": "unrelated"})
	assert.Equal(t, stored, s.Errors["basic"])

	s = m.UpdateStepData(ctx, s, domain.StepData{"mileage": "12"})
	assert.Equal(t, stored, s.Errors["basic"], "fixing the field does not clear stored errors")
	assert.True(t, m.CanGoNext(s), "real-time validity reflects the fix")

	s, ok := m.Next(ctx, s)
	require.True(t, ok)
	assert.Equal(t, []string{}, s.Errors["basic"])
}

func TestMachine_RealtimeVsAttempted(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, twoStepConfig())

	assert.False(t, m.CanGoNext(s))
	assert.NotEmpty(t, m.RealtimeErrors(s))
	assert.Empty(t, m.AttemptedErrors(s, "basic"), "no text before the first attempt")

	s, _ = m.Next(ctx, s)
	assert.NotEmpty(t, m.AttemptedErrors(s, "basic"))
}

func TestMachine_UpdateStepDataMergesShallow(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, twoStepConfig())

	s = m.UpdateStepData(ctx, s, domain.StepData{"date": "2026-05-01", "mileage": "10"})
	s2 := m.UpdateStepData(ctx, s, domain.StepData{"mileage": "20"})

	assert.Equal(t, domain.StepData{"date": "2026-05-01", "mileage": "20"}, s2.Data["basic"])
	assert.Equal(t, "10", s.Data["basic"]["mileage"], "input state is not mutated")
}

func TestMachine_Skip(t *testing.T) {
	ctx := context.Background()
	cfg := domain.Config{Steps: []domain.StepDefinition{
		{ID: "notes", CanSkip: true, Validate: func(domain.StepData, domain.Data) []string { return []string{"never valid"} }},
		{ID: "fixed", Validate: func(domain.StepData, domain.Data) []string { return []string{"never valid"} }},
	}}
	m, s := newMachine(t, cfg)

	assert.True(t, m.CanSkip(s))
	s, ok := m.Skip(ctx, s)
	require.True(t, ok)
	assert.Equal(t, "fixed", s.CurrentStepID)
	assert.True(t, s.Completed.Has("notes"))
	assert.False(t, s.Attempted.Has("notes"))

	assert.False(t, m.CanSkip(s))
	s2, ok := m.Skip(ctx, s)
	assert.False(t, ok)
	assert.Equal(t, s, s2)
}

func TestMachine_BackAtFirstStepIsNoop(t *testing.T) {
	m, s := newMachine(t, twoStepConfig())
	s2, ok := m.Back(context.Background(), s)
	assert.False(t, ok)
	assert.Equal(t, s, s2)
}

func TestMachine_NextAtLastStep(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, domain.Config{Steps: []domain.StepDefinition{{ID: "only"}}})

	s, ok := m.Next(ctx, s)
	assert.True(t, ok)
	assert.Equal(t, "only", s.CurrentStepID)
	assert.True(t, s.Completed.Has("only"))
	assert.True(t, m.IsLast(s))
}

func TestMachine_GoTo(t *testing.T) {
	ctx := context.Background()
	cfg := domain.Config{Steps: []domain.StepDefinition{
		{ID: "a"},
		{ID: "b", Validate: func(s domain.StepData, _ domain.Data) []string {
			if s["ok"] != true {
				return []string{"b invalid"}
			}
			return nil
		}},
		{ID: "c"},
		{ID: "d"},
	}}
	m, s := newMachine(t, cfg)

	t.Run("far ahead is ignored", func(t *testing.T) {
		next, ok := m.GoTo(ctx, s, "c")
		assert.False(t, ok)
		assert.Equal(t, "a", next.CurrentStepID)
	})

	t.Run("unknown target is ignored", func(t *testing.T) {
		_, ok := m.GoTo(ctx, s, "zzz")
		assert.False(t, ok)
	})

	t.Run("immediate next when valid", func(t *testing.T) {
		next, ok := m.GoTo(ctx, s, "b")
		require.True(t, ok)
		assert.Equal(t, "b", next.CurrentStepID)
		assert.True(t, next.Completed.Has("a"))
	})

	t.Run("immediate next when invalid", func(t *testing.T) {
		onB, _ := m.GoTo(ctx, s, "b")
		next, ok := m.GoTo(ctx, onB, "c")
		assert.False(t, ok)
		assert.Equal(t, "b", next.CurrentStepID)
	})

	t.Run("backward always allowed", func(t *testing.T) {
		onB, _ := m.GoTo(ctx, s, "b")
		onB = m.UpdateStepData(ctx, onB, domain.StepData{"ok": true})
		onC, ok := m.Next(ctx, onB)
		require.True(t, ok)
		onD, ok := m.Next(ctx, onC)
		require.True(t, ok)

		back, ok := m.GoTo(ctx, onD, "a")
		require.True(t, ok)
		assert.Equal(t, "a", back.CurrentStepID)
		assert.False(t, back.Completed.Has("a"))

		ahead, ok := m.GoTo(ctx, back, "c")
		require.True(t, ok, "completed steps are reachable")
		assert.Equal(t, "c", ahead.CurrentStepID)
	})
}

func TestMachine_Reset(t *testing.T) {
	ctx := context.Background()
	cfg := twoStepConfig()
	cfg.InitialData = domain.Data{"basic": {"mileage": "5"}}
	m, s := newMachine(t, cfg)

	s = m.UpdateStepData(ctx, s, domain.StepData{"date": "2026-05-01", "mileage": "1.5"})
	s, _ = m.Next(ctx, s)
	require.NotEmpty(t, s.Attempted)

	s = m.Reset(ctx, s)
	assert.Equal(t, "basic", s.CurrentStepID)
	assert.Equal(t, domain.Data{"basic": {"mileage": "5"}}, s.Data)
	assert.Empty(t, s.Attempted)
	assert.Empty(t, s.Completed)
	assert.Empty(t, s.Errors)
	assert.Equal(t, "run-1", s.RunID)

	s.Data["basic"]["mileage"] = "changed"
	assert.Equal(t, "5", cfg.InitialData["basic"]["mileage"], "initial data is never aliased")
}

func TestMachine_CancelClosesRun(t *testing.T) {
	ctx := context.Background()
	var cancelled bool
	m, s := newMachine(t, twoStepConfig(), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnCancel: func(context.Context, *domain.RunEvent) { cancelled = true },
	}))

	s = m.Cancel(ctx, s)
	assert.True(t, cancelled)
	assert.Equal(t, domain.StatusCancelled, s.Status)

	s2 := m.UpdateStepData(ctx, s, domain.StepData{"x": 1})
	assert.Nil(t, s2.Data["basic"])
	_, ok := m.Complete(ctx, s)
	assert.False(t, ok)
}

func TestMachine_Hooks(t *testing.T) {
	ctx := context.Background()
	var entered, left, failed []string
	var completed int
	hooks := domain.LifecycleHooks{
		OnStepEnter:        func(_ context.Context, e *domain.StepEvent) { entered = append(entered, e.StepID) },
		OnStepLeave:        func(_ context.Context, e *domain.StepEvent) { left = append(left, e.StepID) },
		OnValidationFailed: func(_ context.Context, e *domain.StepEvent) { failed = append(failed, e.StepID) },
		OnComplete:         func(context.Context, *domain.RunEvent) { completed++ },
	}
	m, s := newMachine(t, twoStepConfig(), runtime.WithLifecycleHooks(hooks))

	s, _ = m.Next(ctx, s)
	s = m.UpdateStepData(ctx, s, domain.StepData{"date": "2026-05-01", "mileage": "9"})
	s, _ = m.Next(ctx, s)
	_, ok := m.Complete(ctx, s)
	require.True(t, ok)

	assert.Equal(t, []string{"basic", "confirm"}, entered)
	assert.Equal(t, []string{"basic"}, left)
	assert.Equal(t, []string{"basic"}, failed)
	assert.Equal(t, 1, completed)
}

func TestMachine_Construction(t *testing.T) {
	_, err := runtime.NewMachine(domain.Config{})
	assert.True(t, errors.Is(err, domain.ErrNoSteps))

	m, err := runtime.NewMachine(domain.Config{Steps: []domain.StepDefinition{
		{ID: "hidden", ShouldShow: func(domain.Data) bool { return false }},
	}})
	require.NoError(t, err)
	_, err = m.Start(context.Background(), "r")
	assert.True(t, errors.Is(err, domain.ErrNoVisibleSteps))
}

func TestMachine_Restore(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, twoStepConfig())
	s = m.UpdateStepData(ctx, s, domain.StepData{"date": "2026-05-01", "mileage": "9"})
	s, _ = m.Next(ctx, s)

	restored, err := m.Restore(s)
	require.NoError(t, err)
	assert.Equal(t, s, restored)

	bad := s.Clone()
	bad.Data["ghost"] = domain.StepData{}
	_, err = m.Restore(bad)
	assert.True(t, errors.Is(err, domain.ErrUnknownStep))
}

// The properties below run random operation sequences against a four-step
// wizard with a conditional step.

func propertyConfig() domain.Config {
	return domain.Config{Steps: []domain.StepDefinition{
		{ID: "s1", Validate: func(s domain.StepData, _ domain.Data) []string {
			if s["v"] != true {
				return []string{"s1 invalid"}
			}
			return nil
		}},
		{ID: "s2", CanSkip: true, ShouldShow: func(d domain.Data) bool { return d["s1"]["show"] == true }},
		{ID: "s3", Validate: func(s domain.StepData, _ domain.Data) []string {
			if s["v"] != true {
				return []string{"s3 invalid"}
			}
			return nil
		}},
		{ID: "s4", CanSkip: true},
	}}
}

func randomWalk(t *testing.T, seed int64, check func(before, after *domain.State, op string)) {
	ctx := context.Background()
	m, s := newMachine(t, propertyConfig())
	rng := rand.New(rand.NewSource(seed))
	ids := []string{"s1", "s2", "s3", "s4"}

	for i := 0; i < 200; i++ {
		before := s
		var op string
		switch rng.Intn(7) {
		case 0:
			op = "update"
			s = m.UpdateStepData(ctx, s, domain.StepData{"v": rng.Intn(2) == 0, "show": rng.Intn(2) == 0})
		case 1:
			op = "next"
			s, _ = m.Next(ctx, s)
		case 2:
			op = "back"
			s, _ = m.Back(ctx, s)
		case 3:
			op = "skip"
			s, _ = m.Skip(ctx, s)
		case 4:
			op = "goto"
			s, _ = m.GoTo(ctx, s, ids[rng.Intn(len(ids))])
		case 5:
			op = "complete"
			s, _ = m.Complete(ctx, s)
			if s.Status == domain.StatusCompleted {
				s.Status = domain.StatusActive
			}
		case 6:
			op = "next"
			s, _ = m.Next(ctx, s)
		}
		check(before, s, op)
	}
}

func TestProperty_AttemptedOnlyGrows(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		randomWalk(t, seed, func(before, after *domain.State, op string) {
			for id := range before.Attempted {
				assert.True(t, after.Attempted.Has(id), "seed %d op %s dropped %s", seed, op, id)
			}
		})
	}
}

func TestProperty_VisibleIsSubsequence(t *testing.T) {
	m, err := runtime.NewMachine(propertyConfig())
	require.NoError(t, err)
	declared := []string{"s1", "s2", "s3", "s4"}

	for seed := int64(1); seed <= 20; seed++ {
		randomWalk(t, seed, func(_, after *domain.State, _ string) {
			pos := -1
			for _, step := range m.Visible(after) {
				i := indexOfID(declared, step.ID)
				require.Greater(t, i, pos, "visible order must follow declaration order")
				pos = i
			}
		})
	}
}

func TestProperty_CompleteIffAllVisibleValid(t *testing.T) {
	ctx := context.Background()
	m, err := runtime.NewMachine(propertyConfig())
	require.NoError(t, err)

	for seed := int64(1); seed <= 20; seed++ {
		randomWalk(t, seed, func(_, after *domain.State, _ string) {
			allValid := true
			for _, step := range m.Visible(after) {
				if len(step.Check(after.Data)) > 0 {
					allValid = false
				}
			}
			_, ok := m.Complete(ctx, after)
			assert.Equal(t, allValid, ok)
		})
	}
}

func TestProperty_BackUncompletes(t *testing.T) {
	ctx := context.Background()
	m, _ := newMachine(t, propertyConfig())

	for seed := int64(1); seed <= 20; seed++ {
		randomWalk(t, seed, func(_, after *domain.State, _ string) {
			cur, ok := m.Current(after)
			if !ok {
				return
			}
			advanced, ok := m.Next(ctx, after)
			if !ok || advanced.CurrentStepID == cur.ID {
				return
			}
			require.True(t, advanced.Completed.Has(cur.ID))

			back, ok := m.Back(ctx, advanced)
			require.True(t, ok)
			assert.Equal(t, cur.ID, back.CurrentStepID)
			assert.False(t, back.Completed.Has(cur.ID))
		})
	}
}

func indexOfID(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
