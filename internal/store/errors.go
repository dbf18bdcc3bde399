package store

import (
	"errors"
	"strings"
)

var (
	// ErrOutOfRange is returned when a position does not address a record in
	// the current sequence.
	ErrOutOfRange = errors.New("position out of range")

	ErrRequiredField = errors.New("required field")
	ErrTooShort      = errors.New("too short")
	ErrPastDate      = errors.New("date in the past")
)

// Kind names a validation failure.
type Kind string

const (
	KindRequiredField Kind = "RequiredField"
	KindTooShort      Kind = "TooShort"
	KindPastDate      Kind = "PastDate"
)

func (k Kind) sentinel() error {
	switch k {
	case KindRequiredField:
		return ErrRequiredField
	case KindTooShort:
		return ErrTooShort
	case KindPastDate:
		return ErrPastDate
	default:
		return nil
	}
}

// FieldError describes one failing field of a Draft.
type FieldError struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e FieldError) Unwrap() error {
	return e.Kind.sentinel()
}

// ValidationError carries every field failure found for a Draft.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "invalid event: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f)
	}
	return out
}

// Has reports whether field failed with kind.
func (e *ValidationError) Has(field string, kind Kind) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Kind == kind {
			return true
		}
	}
	return false
}
