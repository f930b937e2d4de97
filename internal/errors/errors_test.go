//nolint:revive // Package name matches the package it tests
package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionErrorNamesPath(t *testing.T) {
	err := NewOptionError(ErrConflictingDefinition, "session.target", "", "%q vs %q", "alpha", "beta")

	assert.True(t, errors.Is(err, ErrConflictingDefinition))
	assert.False(t, errors.Is(err, ErrTypeMismatch))
	assert.Contains(t, err.Error(), "session.target")
	assert.Contains(t, err.Error(), `"alpha" vs "beta"`)
}

func TestRecipeErrorUnwrapsKindAndCause(t *testing.T) {
	cause := fmt.Errorf("exit status 2")
	err := &RecipeError{Kind: ErrBuildStepFailure, Recipe: "theme", Key: "sha256-abc", Cause: cause}

	assert.True(t, errors.Is(err, ErrBuildStepFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "recipe theme")
	assert.Contains(t, err.Error(), "sha256-abc")
}

func TestRecipeErrorCycle(t *testing.T) {
	err := &RecipeError{Kind: ErrCyclicDependency, Cycle: []string{"a", "b", "a"}}
	assert.Equal(t, "cyclic dependency: a -> b -> a", err.Error())
}

func TestRecipeErrorIntegrity(t *testing.T) {
	err := &RecipeError{Kind: ErrIntegrityMismatch, Recipe: "theme", Expected: "sha256-x", Actual: "sha256-y"}
	assert.Contains(t, err.Error(), "expected sha256-x, got sha256-y")
}

func TestFlatten(t *testing.T) {
	a := NewOptionError(ErrMissingRequiredOption, "a", "", "")
	b := &RecipeError{Kind: ErrBuildStepFailure, Recipe: "b", Cause: fmt.Errorf("boom")}
	joined := errors.Join(a, errors.Join(b))

	flat := Flatten(joined)
	require.Len(t, flat, 2)
	assert.Same(t, a, flat[0])
	assert.Same(t, b, flat[1])
	assert.Nil(t, Flatten(nil))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain", err: fmt.Errorf("boom"), want: ExitGeneralError},
		{name: "conflict", err: NewOptionError(ErrConflictingDefinition, "x", "", ""), want: ExitSchemaError},
		{name: "cycle", err: &RecipeError{Kind: ErrCyclicDependency}, want: ExitGraphError},
		{name: "integrity", err: &RecipeError{Kind: ErrIntegrityMismatch}, want: ExitIntegrityError},
		{name: "unknown output", err: fmt.Errorf("export: %w", ErrUnknownOutput), want: ExitNotFound},
		{name: "build step", err: &RecipeError{Kind: ErrBuildStepFailure}, want: ExitBuildError},
		{name: "corruption", err: &RecipeError{Kind: ErrCacheCorruption}, want: ExitCacheCorruption},
		{name: "explicit", err: &ExitError{Err: fmt.Errorf("x"), Code: 9}, want: 9},
		{
			name: "integrity wins over build failure",
			err:  errors.Join(&RecipeError{Kind: ErrBuildStepFailure}, &RecipeError{Kind: ErrIntegrityMismatch}),
			want: ExitIntegrityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestDetailErrorError(t *testing.T) {
	detail := &DetailError{
		Type:     "validation failed",
		Message:  "invalid value",
		Location: "/path/to/module.yaml",
		Field:    "session.target",
		Context:  map[string]string{"Module": "base"},
		Hint:     "Use a declared target name",
	}

	output := detail.Error()

	assert.Contains(t, output, "Error: validation failed")
	assert.Contains(t, output, "Location: /path/to/module.yaml")
	assert.Contains(t, output, "Field: session.target")
	assert.Contains(t, output, "Module: base")
	assert.Contains(t, output, "invalid value")
	assert.Contains(t, output, "Hint: Use a declared target name")
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("invalid value", "/path/to/file.yaml", "session.target", "")

	require.NotNil(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var detail *DetailError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, "validation failed", detail.Type)
	assert.Equal(t, "session.target", detail.Field)
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "recipe file missing")

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Contains(t, wrapped.Error(), "recipe file missing")
}
