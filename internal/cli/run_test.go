package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/internal/testutils"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoFactory(t *testing.T) *Factory {
	t.Helper()
	dir, _ := testutils.SetupTestRepo(t)
	testutils.WriteDoc(t, dir, "note.md", "flow: memo\ntitle: Note\nfields:\n  title: text(2,50)", "Name the entry.")

	f := NewFactory(testConfig(t), logging.NewNop())
	f.FlowsDir = dir
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRunSession_CompletesAndExports(t *testing.T) {
	f := memoFactory(t)
	exportPath := filepath.Join(t.TempDir(), "memo.json")

	var out bytes.Buffer
	err := RunSession(context.Background(), f, RunOptions{
		Flow:   "memo",
		RunID:  "r1",
		Plain:  true,
		Export: exportPath,
		In:     strings.NewReader("Oil change\n\n"),
		Out:    &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Run 'r1' active.")
	assert.Contains(t, out.String(), "[System] Saved.")
	assert.Contains(t, out.String(), "Run 'r1' saved.")

	raw, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"title": "Oil change"`)

	store, err := f.Store()
	require.NoError(t, err)
	state, err := store.Load(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, state.Status)

	out.Reset()
	err = RunSession(context.Background(), f, RunOptions{Flow: "memo", RunID: "r1", Plain: true, Quiet: true, In: strings.NewReader(""), Out: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Run 'r1' is already completed.")
}

func TestRunSession_PausesAndResumes(t *testing.T) {
	f := memoFactory(t)
	ctx := context.Background()

	var out bytes.Buffer
	err := RunSession(ctx, f, RunOptions{
		Flow:  "memo",
		RunID: "r2",
		Plain: true,
		Quiet: true,
		In:    strings.NewReader("X\n\n"),
		Out:   &out,
	})
	require.NoError(t, err, "closed input pauses the run")
	assert.Contains(t, out.String(), "Title must be at least 2 characters")

	store, err := f.Store()
	require.NoError(t, err)
	state, err := store.Load(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, state.Status)
	assert.Equal(t, "X", state.Data["note"]["title"])

	out.Reset()
	err = RunSession(ctx, f, RunOptions{
		Flow:  "memo",
		RunID: "r2",
		Plain: true,
		In:    strings.NewReader("Brakes\n\n"),
		Out:   &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Resuming run 'r2' at 'note'")
	assert.Contains(t, out.String(), "[X]", "the stored answer is offered as default")

	state, err = store.Load(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, state.Status)
}

func TestRunSession_WrongFlow(t *testing.T) {
	f := memoFactory(t)
	store, err := f.Store()
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "r3", &domain.State{RunID: "r3", Flow: "diy", Status: domain.StatusActive}))

	err = RunSession(context.Background(), f, RunOptions{Flow: "memo", RunID: "r3", Plain: true, Quiet: true, In: strings.NewReader(""), Out: &bytes.Buffer{}})
	assert.ErrorContains(t, err, `belongs to flow "diy"`)
}
