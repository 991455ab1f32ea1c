package schema

import (
	"errors"
	"fmt"
	"time"
)

// Field binds a data key to the type its value must satisfy.
type Field struct {
	Key  string
	Type Type
}

// Schema is an ordered list of fields. Validation reports failures in field order.
// Example: Schema{{"date", Date("Service date")}, {"mileage", Mileage()}}
type Schema []Field

// Lookup returns the type registered for key.
func (s Schema) Lookup(key string) (Type, bool) {
	for _, f := range s {
		if f.Key == key {
			return f.Type, true
		}
	}
	return nil, false
}

// Keys returns the field keys in order.
func (s Schema) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

// Validate checks if data conforms to the schema.
// Returns an error with all validation failures found.
func Validate(schema Schema, data map[string]any) error {
	return ValidateAt(schema, data, time.Now())
}

// ValidateAt is Validate with a pinned clock for time-relative rules.
func ValidateAt(schema Schema, data map[string]any, now time.Time) error {
	if len(schema) == 0 {
		// No schema = no validation
		return nil
	}

	var errs []error
	for _, field := range schema {
		if err := checkField(field, data[field.Key], now); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateFields validates only specific fields from data against the schema.
// Missing fields are validated as nil values.
func ValidateFields(schema Schema, data map[string]any, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	now := time.Now()
	var errs []error

	for _, fieldName := range fields {
		fieldType, exists := schema.Lookup(fieldName)
		if !exists {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: "not defined in schema",
			})
			continue
		}
		if err := checkField(Field{Key: fieldName, Type: fieldType}, data[fieldName], now); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// checkField never panics: a panicking custom type is reported as a failure.
func checkField(field Field, value any, now time.Time) (verr *ValidationError) {
	defer func() {
		if r := recover(); r != nil {
			verr = &ValidationError{
				Key:    field.Key,
				Reason: fmt.Sprintf("validator failed: %v", r),
				Value:  value,
			}
		}
	}()

	if field.Type == nil {
		return &ValidationError{Key: field.Key, Reason: "type is nil", Value: value}
	}

	err := validateAt(field.Type, value, now)
	if err == nil {
		return nil
	}

	verr = &ValidationError{
		Key:    field.Key,
		Reason: err.Error(),
		Value:  value,
	}
	var msg *MessageError
	if errors.As(err, &msg) {
		verr.Message = msg.Msg
	}
	return verr
}
