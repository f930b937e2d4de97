package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema/config.cue
var configSchemaCUE []byte

const schemaDefinition = "#Config"

// ValidationError is one rejected config field.
type ValidationError struct {
	Field   string
	Message string

	// Line is the line in the config file, zero when the value did not
	// come from a file.
	Line int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", e.Field, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is every rejected field of one config, in file order.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	lines := make([]string, 0, len(e)+1)
	lines = append(lines, "config validation failed:")
	for i := range e {
		lines = append(lines, "  "+e[i].Error())
	}
	return strings.Join(lines, "\n")
}

// Validator checks configs against the embedded #Config schema. The
// schema is closed, so unknown keys are rejected too.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	file := ctx.CompileBytes(configSchemaCUE, cue.Filename("config.cue"))
	if err := file.Err(); err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	return &Validator{ctx: ctx, schema: file.LookupPath(cue.ParsePath(schemaDefinition))}, nil
}

// Validate checks an in-memory config.
func (v *Validator) Validate(cfg *Config) error {
	value := v.ctx.Encode(cfg)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return v.check(value, "")
}

// ValidateFile checks a config file as written, reporting line numbers.
func (v *Validator) ValidateFile(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(expanded)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	f, err := cueyaml.Extract(expanded, src)
	if err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	value := v.ctx.BuildFile(f)
	if err := value.Err(); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return v.check(value, expanded)
}

func (v *Validator) check(value cue.Value, filename string) error {
	err := v.schema.Unify(value).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		errs = append(errs, ValidationError{
			Field:   fieldPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
			Line:    lineIn(e, filename),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Line < errs[j].Line })
	return errs
}

// fieldPath joins an error path relative to the config root. Errors found
// by unifying with the schema are reported under the #Config definition.
func fieldPath(path []string) string {
	if len(path) > 0 && path[0] == schemaDefinition {
		path = path[1:]
	}
	return strings.Join(path, ".")
}

// lineIn finds the error position inside filename.
func lineIn(e cueerrors.Error, filename string) int {
	if filename == "" {
		return 0
	}
	for _, pos := range cueerrors.Positions(e) {
		if pos.Filename() == filename {
			return pos.Line()
		}
	}
	return 0
}
