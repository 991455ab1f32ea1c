/*
Package runner drives a wizard from a terminal.

The Runner renders the active step, asks for each schema field, offers the
controls the step allows and applies the choice, until the run is saved or
cancelled. Interaction is delegated to an IOHandler: SurveyHandler for
interactive terminals and TextHandler for pipes and scripted input. Every
answer goes through SanitizeInput.

	r := runner.NewRunner(runner.WithLogger(logger))
	ctl, _ := stepwise.NewController(cfg, onComplete, nil,
		stepwise.WithConfirmer(r.Confirmer()))
	status, err := r.Run(ctx, ctl)
*/
package runner
