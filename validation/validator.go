package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ylai/autoplatform/errors"
)

// Validator collects field errors for hand-written checks.
type Validator struct {
	errors []FieldError
}

// FieldError is a single failed check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func New() *Validator {
	return &Validator{}
}

// AddError records a failure and returns the receiver for chaining.
func (v *Validator) AddError(field, message string) *Validator {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns nil when no check failed, otherwise an INVALID_INPUT error
// whose details carry the field list.
func (v *Validator) Validate() error {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = e.Field + ": " + e.Message
	}
	return errors.Validation(strings.Join(messages, "; ")).WithDetail("fields", v.errors)
}

// Check records message for field when ok is false.
func (v *Validator) Check(ok bool, field, message string) *Validator {
	if !ok {
		v.AddError(field, message)
	}
	return v
}

func (v *Validator) Required(field, value string) *Validator {
	return v.Check(strings.TrimSpace(value) != "", field, "is required")
}

func (v *Validator) MaxLength(field, value string, maxLen int) *Validator {
	return v.Check(len(value) <= maxLen, field, fmt.Sprintf("must be %d characters or less", maxLen))
}

func (v *Validator) Range(field string, value, minVal, maxVal int) *Validator {
	return v.Check(value >= minVal && value <= maxVal, field, fmt.Sprintf("must be between %d and %d", minVal, maxVal))
}

// OneOf checks value against an allowed set. Empty values pass; pair with
// Required when the field is mandatory.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	if value == "" {
		return v
	}
	return v.Check(slices.Contains(allowed, value), field, "must be one of: "+strings.Join(allowed, " "))
}

// NodeID checks the id format accepted for pipeline nodes.
func (v *Validator) NodeID(field, value string) *Validator {
	return v.Check(nodeIDPattern.MatchString(value), field, "must be a node id of letters, digits, '_', '.', ':' or '-'")
}

// Unique reports every value that appears more than once.
func (v *Validator) Unique(field string, values []string) *Validator {
	seen := make(map[string]bool, len(values))
	for _, val := range values {
		if seen[val] {
			v.AddError(field, fmt.Sprintf("duplicate value %q", val))
		}
		seen[val] = true
	}
	return v
}
