/*
Package stepwise is a multi-step form engine: ordered steps, conditional
visibility, per-step validation and a two-mode error display.

A Wizard owns one run. Steps are declared in a domain.Config, usually through
pkg/dsl, and every operation is a synchronous transition over the run state.
Errors are available in two views that must not be mixed up:

  - RealtimeErrors and CanGoNext are recomputed from the current data and
    drive whether the Next control is enabled. Nothing is stored.
  - Errors(stepID) returns what the last GoNext or Complete stored, and only
    once the user has tried to leave that step.

A Controller wraps a Wizard with the button semantics of a form host: Next
turns into Save on the last visible step, Save completes the run and hands
the data to the completion callback, Cancel is confirmed before it fires.

# Usage

	cfg, err := maintenance.DIY(maintenance.Options{})
	if err != nil {
		log.Fatal(err)
	}

	ctl, err := stepwise.NewController(cfg,
		func(ctx context.Context, data domain.Data) error {
			entry, err := maintenance.ToLog(maintenance.FlowDIY, data)
			if err != nil {
				return err
			}
			return save(ctx, entry)
		},
		nil,
	)
	if err != nil {
		log.Fatal(err)
	}
	defer ctl.Close()

	props := ctl.Props()
	props.OnDataChange(ctx, domain.StepData{"date": "2026-05-01", "mileage": "75,000"})
	ok, err := props.OnNext(ctx)

# Persistence

With WithStore, the run is snapshotted after every successful GoNext and
SkipStep, in the background. A failed save is logged and never undoes the
navigation. WithSnapshot resumes a saved run.
*/
package stepwise
