package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"facette.io/natsort"
	"github.com/aretw0/stepwise/pkg/ports"
)

// ListRuns prints the stored run ids in natural order, so "run-2" comes
// before "run-10".
func ListRuns(ctx context.Context, w io.Writer, store ports.StateStore) error {
	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing runs: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No stored runs found.")
		return nil
	}
	sort.SliceStable(ids, func(i, j int) bool { return natsort.Compare(ids[i], ids[j]) })

	fmt.Fprintln(w, "Stored Runs:")
	for _, id := range ids {
		state, err := store.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "- %s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(w, "- %s  %s  %s  at %s\n", id, state.Flow, state.Status, state.CurrentStepID)
	}
	return nil
}

// InspectRun prints the snapshot of a run as indented JSON.
func InspectRun(ctx context.Context, w io.Writer, store ports.StateStore, runID string) error {
	state, err := store.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("error loading run '%s': %w", runID, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling state: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// RemoveRuns deletes runs, reporting each one. With all set, every stored
// run is removed and ids are ignored.
func RemoveRuns(ctx context.Context, w io.Writer, store ports.StateStore, ids []string, all bool) error {
	if all {
		var err error
		if ids, err = store.List(ctx); err != nil {
			return fmt.Errorf("error listing runs: %w", err)
		}
	}
	failed := 0
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "Removed run '%s'\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs could not be removed", failed, len(ids))
	}
	return nil
}
