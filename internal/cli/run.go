package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/presentation/tui"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/runner"
)

// RunOptions configures an interactive run.
type RunOptions struct {
	Flow string
	// RunID resumes a stored run, or names a new one. Empty generates an id.
	RunID string
	// Plain forces the line-based handler without markdown rendering.
	Plain bool
	// Quiet suppresses the banner and system messages.
	Quiet bool
	Debug bool
	// Export writes the finished entry to this path, in the format of its extension.
	Export string

	In  io.Reader
	Out io.Writer
}

// RunSession drives one run of a flow on the terminal. Answers autosave to
// the configured store, so an interrupted run resumes with the same RunID.
func RunSession(ctx context.Context, f *Factory, opts RunOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	logger := f.Logger

	flows, err := f.Flows()
	if err != nil {
		return err
	}
	cfg, err := flows.LoadFlow(ctx, opts.Flow)
	if err != nil {
		return err
	}
	store, err := f.Store()
	if err != nil {
		return err
	}
	sink, err := f.Sink()
	if err != nil {
		return err
	}

	wizardOpts := []stepwise.Option{
		stepwise.WithLogger(logger),
		stepwise.WithStore(store),
	}
	if opts.Debug {
		wizardOpts = append(wizardOpts, stepwise.WithLifecycleHooks(createDebugHooks(logger)))
	}

	loaded := false
	if opts.RunID != "" {
		state, err := store.Load(ctx, opts.RunID)
		switch {
		case err == nil:
			if state.Flow != "" && state.Flow != cfg.Flow {
				return fmt.Errorf("run %q belongs to flow %q", opts.RunID, state.Flow)
			}
			if state.Status != domain.StatusActive {
				printSystemMessage(opts.Out, "Run '%s' is already %s.", opts.RunID, state.Status)
				return nil
			}
			wizardOpts = append(wizardOpts, stepwise.WithSnapshot(state))
			loaded = true
		case errors.Is(err, domain.ErrSessionNotFound):
			wizardOpts = append(wizardOpts, stepwise.WithRunID(opts.RunID))
		default:
			return fmt.Errorf("failed to load run: %w", err)
		}
	}

	if !opts.Quiet {
		tui.PrintBanner(opts.Out, stepwise.Version)
	}

	var handler runner.IOHandler
	if opts.Plain {
		handler = runner.NewTextHandler(opts.In, opts.Out)
	} else {
		handler = runner.NewHandler(opts.In, opts.Out, tui.NewRenderer())
	}
	r := runner.NewRunner(
		runner.WithInputHandler(handler),
		runner.WithLogger(logger),
	)

	onComplete := func(ctx context.Context, data domain.Data) error {
		if opts.Export == "" {
			return nil
		}
		return ExportFile(opts.Export, cfg.Flow, data)
	}

	ctlOpts := []stepwise.ControllerOption{
		stepwise.WithConfirmer(r.Confirmer()),
		stepwise.WithWizardOptions(wizardOpts...),
	}
	if sink != nil {
		ctlOpts = append(ctlOpts, stepwise.WithSink(sink))
	}
	ctl, err := stepwise.NewController(cfg, onComplete, nil, ctlOpts...)
	if err != nil {
		return fmt.Errorf("failed to init run: %w", err)
	}

	w := ctl.Wizard()
	logRunStatus(opts.Out, logger, w.RunID(), w.CurrentStep().ID, loaded, opts.Quiet)

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	status, runErr := r.Run(sigCtx, ctl)

	// Drains the last autosave before the process exits.
	if err := ctl.Close(); err != nil {
		logger.Error("failed to flush run", "run_id", w.RunID(), "err", err)
	}
	// Autosave only follows forward moves. The final snapshot keeps the
	// latest answers of a paused run and the status of a finished one.
	if err := store.Save(context.Background(), w.RunID(), w.State()); err != nil {
		logger.Error("failed to save final state", "run_id", w.RunID(), "err", err)
	}

	if sigCtx.Err() != nil && runErr == nil {
		runErr = sigCtx.Err()
	}
	logCompletion(opts.Out, w.RunID(), status, runErr, opts.Quiet, sigCtx.Signal())
	return handleExecutionError(runErr)
}
