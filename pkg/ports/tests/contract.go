package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SampleState builds a populated run snapshot for store tests.
func SampleState(runID string) *domain.State {
	s := domain.NewState(runID, "parts", domain.Data{
		"basic": {"date": "2026-03-01", "mileage": "75,000", "wantsPhotos": true},
		"parts": {"services": []any{"oil_change", "tire_rotation"}},
	})
	s.Flow = "diy"
	s.Completed.Add("basic")
	s.Attempted.Add("basic")
	s.Attempted.Add("parts")
	s.Errors["basic"] = []string{}
	s.Errors["parts"] = []string{"Select at least one service"}
	s.UpdatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return s
}

// StateStoreContractTest is a reusable test suite that verifies if an adapter complies with ports.StateStore.
func StateStoreContractTest(t *testing.T, store ports.StateStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-run")
		assert.True(t, errors.Is(err, domain.ErrSessionNotFound), "got %v", err)
	})

	t.Run("Save_Load_RoundTrip", func(t *testing.T) {
		want := SampleState("run-roundtrip")
		require.NoError(t, store.Save(ctx, want.RunID, want))

		got, err := store.Load(ctx, want.RunID)
		require.NoError(t, err)
		assert.Equal(t, want.RunID, got.RunID)
		assert.Equal(t, want.Flow, got.Flow)
		assert.Equal(t, want.CurrentStepID, got.CurrentStepID)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Completed.IDs(), got.Completed.IDs())
		assert.Equal(t, want.Attempted.IDs(), got.Attempted.IDs())
		assert.Equal(t, want.Errors, got.Errors)
		assert.Equal(t, "75,000", got.Data["basic"]["mileage"])
		assert.Equal(t, true, got.Data["basic"]["wantsPhotos"])
		assert.Len(t, got.Data["parts"]["services"], 2)
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("Save_Overwrites", func(t *testing.T) {
		s := SampleState("run-overwrite")
		require.NoError(t, store.Save(ctx, s.RunID, s))

		s.CurrentStepID = "review"
		require.NoError(t, store.Save(ctx, s.RunID, s))

		got, err := store.Load(ctx, s.RunID)
		require.NoError(t, err)
		assert.Equal(t, "review", got.CurrentStepID)
	})

	t.Run("Isolation", func(t *testing.T) {
		s := SampleState("run-isolation")
		require.NoError(t, store.Save(ctx, s.RunID, s))
		s.Data["basic"]["mileage"] = "mutated after save"

		got, err := store.Load(ctx, s.RunID)
		require.NoError(t, err)
		assert.Equal(t, "75,000", got.Data["basic"]["mileage"])
	})

	t.Run("List_And_Delete", func(t *testing.T) {
		s := SampleState("run-listed")
		require.NoError(t, store.Save(ctx, s.RunID, s))

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, "run-listed")

		require.NoError(t, store.Delete(ctx, s.RunID))
		_, err = store.Load(ctx, s.RunID)
		assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

		ids, err = store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, "run-listed")

		assert.NoError(t, store.Delete(ctx, "never-existed"))
	})
}
