package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommands(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	var out bytes.Buffer
	require.NoError(t, ListRuns(ctx, &out, store))
	assert.Contains(t, out.String(), "No stored runs found.")

	for _, id := range []string{"run-10", "run-2", "run-1"} {
		require.NoError(t, store.Save(ctx, id, &domain.State{
			RunID: id, Flow: "diy", CurrentStepID: "basic", Status: domain.StatusActive,
		}))
	}

	out.Reset()
	require.NoError(t, ListRuns(ctx, &out, store))
	listing := out.String()
	assert.Less(t, strings.Index(listing, "run-2 "), strings.Index(listing, "run-10 "), "natural order")
	assert.Contains(t, listing, "- run-1  diy  active  at basic")

	out.Reset()
	require.NoError(t, InspectRun(ctx, &out, store, "run-2"))
	assert.Contains(t, out.String(), `"run_id": "run-2"`)
	assert.Error(t, InspectRun(ctx, &out, store, "nope"))

	out.Reset()
	require.NoError(t, RemoveRuns(ctx, &out, store, []string{"run-1"}, false))
	assert.Contains(t, out.String(), "Removed run 'run-1'")

	require.NoError(t, RemoveRuns(ctx, &out, store, nil, true))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
