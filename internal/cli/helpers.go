package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/stepwise/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func logRunStatus(w io.Writer, logger *slog.Logger, runID, stepID string, loaded, quiet bool) {
	if loaded {
		logger.Info("Run Resumed", "run_id", runID, "step", stepID)
		if !quiet {
			printSystemMessage(w, "Resuming run '%s' at '%s'...", runID, stepID)
		}
		return
	}
	logger.Info("Run Created", "run_id", runID)
	if !quiet {
		printSystemMessage(w, "Run '%s' active.", runID)
	}
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Enter Step", "run_id", e.RunID, "step_id", e.StepID)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Leave Step", "run_id", e.RunID, "step_id", e.StepID)
		},
		OnValidationFailed: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Validation Failed", "step_id", e.StepID, "errors", e.Errors)
		},
		OnComplete: func(ctx context.Context, e *domain.RunEvent) {
			logger.Debug("Run Completed", "run_id", e.RunID, "flow", e.Flow)
		},
		OnCancel: func(ctx context.Context, e *domain.RunEvent) {
			logger.Debug("Run Cancelled", "run_id", e.RunID, "flow", e.Flow)
		},
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil // Exit 0 for interruptions
	}
	return err
}

func logCompletion(w io.Writer, runID string, status domain.RunStatus, err error, quiet bool, sig os.Signal) {
	if quiet {
		return
	}
	if err == nil {
		switch status {
		case domain.StatusCompleted:
			printSystemMessage(w, "Run '%s' saved.", runID)
		case domain.StatusCancelled:
			printSystemMessage(w, "Run '%s' discarded.", runID)
		default:
			printSystemMessage(w, "Run '%s' paused. Resume it with --run %s.", runID, runID)
		}
		return
	}

	if isInterrupted(err) {
		switch {
		case sig == os.Interrupt:
			fmt.Fprintf(w, "[CTRL+C]\n")
			printSystemMessage(w, "Interrupted. Resume it with --run %s.", runID)
		case sig != nil:
			fmt.Fprintf(w, "\n")
			printSystemMessage(w, "Terminated. Resume it with --run %s.", runID)
		default:
			fmt.Fprintf(w, "\n")
			printSystemMessage(w, "Interrupted. Resume it with --run %s.", runID)
		}
	}
}
