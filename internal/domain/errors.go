package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataUnavailable means the reference dataset could not be read or
	// lacks a required column.
	ErrDataUnavailable = errors.New("reference data unavailable")

	// ErrModelLoad means the model artifact is missing or corrupt.
	ErrModelLoad = errors.New("model load failed")

	// ErrPrediction means the model rejected a feature row.
	ErrPrediction = errors.New("prediction failed")
)

// FieldError describes one request field that failed presence or kind checks.
type FieldError struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Received string `json:"received"`
}

// ValidationError collects every failing field of a request, in schema order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s (expected %s, got %s)", f.Field, f.Expected, f.Received)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether the named field is among the failures.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
