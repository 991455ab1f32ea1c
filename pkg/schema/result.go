package schema

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Result is the outcome of evaluating data against a schema.
type Result struct {
	Valid bool `json:"valid"`

	// Errors lists user-facing messages in field order.
	Errors []string `json:"errors"`

	// Fields maps each failing field to its first message.
	Fields map[string]string `json:"fields,omitempty"`
}

// Evaluate validates data and returns a Result instead of an error.
func Evaluate(schema Schema, data map[string]any) Result {
	return EvaluateAt(schema, data, time.Now())
}

// EvaluateAt is Evaluate with a pinned clock.
func EvaluateAt(schema Schema, data map[string]any, now time.Time) Result {
	return NewResult(ValidateAt(schema, data, now))
}

// NewResult converts a validation error into a Result.
func NewResult(err error) Result {
	res := Result{Valid: err == nil, Errors: []string{}}
	if err == nil {
		return res
	}

	res.Fields = make(map[string]string)
	errs := ValidationErrors(err)
	if errs == nil {
		errs = []error{err}
	}
	for _, e := range errs {
		var verr *ValidationError
		if errors.As(e, &verr) {
			res.Errors = append(res.Errors, verr.Text())
			if _, seen := res.Fields[verr.Key]; !seen {
				res.Fields[verr.Key] = verr.Text()
			}
			continue
		}
		res.Errors = append(res.Errors, e.Error())
	}
	return res
}

// Check evaluates an arbitrary value: maps are used as is, structs are decoded
// into maps first. Anything else yields an invalid result.
func Check(schema Schema, v any) Result {
	return CheckAt(schema, v, time.Now())
}

// CheckAt is Check with a pinned clock.
func CheckAt(schema Schema, v any, now time.Time) Result {
	data, err := toMap(v)
	if err != nil {
		return Result{
			Valid:  false,
			Errors: []string{err.Error()},
		}
	}
	return EvaluateAt(schema, data, now)
}

func toMap(v any) (map[string]any, error) {
	if v == nil {
		return nil, fmt.Errorf("expected an object, got nothing")
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("expected an object, got nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}

	out := make(map[string]any)
	if err := mapstructure.Decode(rv.Interface(), &out); err != nil {
		return nil, fmt.Errorf("expected an object: %w", err)
	}
	return out, nil
}
