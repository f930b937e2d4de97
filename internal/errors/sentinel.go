package errors

import "errors"

// Sentinel errors for known conditions. Every typed error in this package
// unwraps to exactly one of these, so callers match with errors.Is.
var (
	// ErrUnknownOption indicates an assignment or lookup for an unregistered path.
	ErrUnknownOption = errors.New("unknown option")

	// ErrTypeMismatch indicates a value that does not fit the option's declared type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrDuplicateOption indicates a conflicting option registration.
	ErrDuplicateOption = errors.New("duplicate option")

	// ErrConflictingDefinition indicates differing values at the same winning priority.
	ErrConflictingDefinition = errors.New("conflicting definition")

	// ErrMissingRequiredOption indicates an option with no assignment and no default.
	ErrMissingRequiredOption = errors.New("missing required option")

	// ErrCyclicDependency indicates a cycle in the recipe graph.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrUnknownRecipe indicates a reference to a recipe the store does not hold.
	ErrUnknownRecipe = errors.New("unknown recipe")

	// ErrIntegrityMismatch indicates build output that does not hash to the expected value.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrCacheCorruption indicates an existing cache entry with a different hash.
	ErrCacheCorruption = errors.New("cache corruption")

	// ErrUnknownOutput indicates a name that is not a declared output.
	ErrUnknownOutput = errors.New("unknown output")

	// ErrBuildStepFailure indicates a build step that exited unsuccessfully.
	ErrBuildStepFailure = errors.New("build step failure")

	// ErrValidation indicates a malformed input file.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates a module, recipe file or artifact was not found.
	ErrNotFound = errors.New("not found")
)
