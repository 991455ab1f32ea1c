package schema

import (
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
)

// StepValidator adapts a schema to a wizard step validator.
func StepValidator(s Schema) domain.ValidateFunc {
	return StepValidatorAt(s, time.Now)
}

// StepValidatorAt is StepValidator with an injectable clock.
func StepValidatorAt(s Schema, now func() time.Time) domain.ValidateFunc {
	return func(step domain.StepData, _ domain.Data) []string {
		res := EvaluateAt(s, step, now())
		if res.Valid {
			return nil
		}
		return res.Errors
	}
}
