// Package errors provides sentinel and typed errors for strata.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Exit codes, one per error family.
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitSchemaError     = 2
	ExitGraphError      = 3
	ExitIntegrityError  = 4
	ExitNotFound        = 5
	ExitBuildError      = 6
	ExitCacheCorruption = 7
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int

	// Printed is set when the command layer already rendered the error.
	Printed bool
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// OptionError identifies a failing option path.
type OptionError struct {
	// Kind is one of the option sentinels (ErrUnknownOption, ErrTypeMismatch, ...).
	Kind error

	// Path is the dotted option path.
	Path string

	// Source names the module or schema file, when known.
	Source string

	// Detail is a human-readable explanation.
	Detail string
}

// Error implements the error interface.
func (e *OptionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	b.WriteString(e.Path)
	if e.Source != "" {
		b.WriteString(" (")
		b.WriteString(e.Source)
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the kind sentinel.
func (e *OptionError) Unwrap() error {
	return e.Kind
}

// NewOptionError creates an OptionError.
func NewOptionError(kind error, path, source, format string, args ...any) *OptionError {
	return &OptionError{Kind: kind, Path: path, Source: source, Detail: fmt.Sprintf(format, args...)}
}

// RecipeError identifies a failing recipe by name and key.
type RecipeError struct {
	Kind   error
	Recipe string
	Key    string

	// Expected and Actual are set for integrity and corruption failures.
	Expected string
	Actual   string

	// Cycle lists the recipe names forming a cycle, first name repeated at the end.
	Cycle []string

	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *RecipeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if len(e.Cycle) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Cycle, " -> "))
	} else if e.Recipe != "" {
		b.WriteString(": recipe ")
		b.WriteString(e.Recipe)
	}
	if e.Key != "" {
		b.WriteString(" [")
		b.WriteString(e.Key)
		b.WriteString("]")
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, ": expected %s, got %s", e.Expected, e.Actual)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the kind sentinel and the cause.
func (e *RecipeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// DetailError captures structured error information for CLI rendering.
type DetailError struct {
	// Type is the error category (required).
	Type string

	// Message is the specific description (required).
	Message string

	// Location is the file path and line number (optional).
	Location string

	// Field is the option path for schema errors (optional).
	Field string

	// Context contains additional key-value context (optional).
	Context map[string]string

	// Hint provides actionable guidance (optional).
	Hint string

	// Cause is the underlying error (optional).
	Cause error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(e.Type)
	b.WriteString("\n")

	if e.Location != "" {
		b.WriteString("  Location: ")
		b.WriteString(e.Location)
		b.WriteString("\n")
	}
	if e.Field != "" {
		b.WriteString("  Field: ")
		b.WriteString(e.Field)
		b.WriteString("\n")
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("  ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Context[k])
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
		b.WriteString("\n")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error with details.
func NewValidationError(message, location, field, hint string) error {
	return &DetailError{
		Type:     "validation failed",
		Message:  message,
		Location: location,
		Field:    field,
		Hint:     hint,
		Cause:    ErrValidation,
	}
}

// NewNotFoundError creates a not found error with details.
func NewNotFoundError(message, location, hint string) error {
	return &DetailError{
		Type:     "not found",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrNotFound,
	}
}

// Wrap wraps an error with a sentinel error type.
func Wrap(sentinel error, message string) error {
	return fmt.Errorf("%s: %w", message, sentinel)
}

// Flatten expands joined errors into their leaves, in order.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		if _, typed := err.(*RecipeError); !typed {
			var out []error
			for _, e := range j.Unwrap() {
				out = append(out, Flatten(e)...)
			}
			return out
		}
	}
	return []error{err}
}

// ExitCode maps an error to its exit code. The first matching family wins,
// checked from most to least specific.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, ErrIntegrityMismatch):
		return ExitIntegrityError
	case errors.Is(err, ErrCacheCorruption):
		return ExitCacheCorruption
	case errors.Is(err, ErrBuildStepFailure):
		return ExitBuildError
	case errors.Is(err, ErrCyclicDependency), errors.Is(err, ErrUnknownRecipe):
		return ExitGraphError
	case errors.Is(err, ErrUnknownOption), errors.Is(err, ErrTypeMismatch),
		errors.Is(err, ErrDuplicateOption), errors.Is(err, ErrConflictingDefinition),
		errors.Is(err, ErrMissingRequiredOption), errors.Is(err, ErrValidation):
		return ExitSchemaError
	case errors.Is(err, ErrUnknownOutput), errors.Is(err, ErrNotFound):
		return ExitNotFound
	default:
		return ExitGeneralError
	}
}
