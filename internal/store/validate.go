package store

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"eventflow/internal/model"
)

const (
	MinTitleLen       = 3
	MinDescriptionLen = 10
)

// Draft is the user input for a new event.
type Draft struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        *model.Date `json:"date"`
}

// Validate checks every field of d independently and reports all failures
// together. It returns nil or a *ValidationError.
func Validate(d Draft, today model.Date) error {
	var fields []FieldError

	if f, ok := checkText("title", "Title", d.Title, MinTitleLen); !ok {
		fields = append(fields, f)
	}
	if f, ok := checkText("description", "Description", d.Description, MinDescriptionLen); !ok {
		fields = append(fields, f)
	}

	switch {
	case d.Date == nil || d.Date.IsZero():
		fields = append(fields, FieldError{Field: "date", Kind: KindRequiredField, Message: "Date is required"})
	case d.Date.Before(today):
		fields = append(fields, FieldError{Field: "date", Kind: KindPastDate, Message: "Date cannot be in the past"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func checkText(field, label, value string, minLen int) (FieldError, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return FieldError{Field: field, Kind: KindRequiredField, Message: label + " is required"}, false
	}
	if utf8.RuneCountInString(v) < minLen {
		return FieldError{
			Field:   field,
			Kind:    KindTooShort,
			Message: label + " must be at least " + strconv.Itoa(minLen) + " characters",
		}, false
	}
	return FieldError{}, true
}
