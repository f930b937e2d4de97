// Package pipeline runs the strata phases for the CLI: load modules, resolve,
// compose the closure, build it and export outputs.
package pipeline

import (
	"errors"

	"github.com/opmodel/strata/internal/builder"
	"github.com/opmodel/strata/internal/closure"
	"github.com/opmodel/strata/internal/module"
	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/internal/recipe"
	"github.com/opmodel/strata/internal/resolve"
)

// Options selects the inputs of a run.
type Options struct {
	// Modules are configuration module files, merged in any order.
	// Required.
	Modules []string

	// Schemas are extra option schema files registered after the built-in
	// schema.
	Schemas []string

	// Recipes are recipe files. Required for Plan and Build.
	Recipes []string

	// Outputs restricts the closure to these named outputs.
	Outputs []string
}

// Validate checks that required options are set.
func (o Options) Validate() error {
	if len(o.Modules) == 0 {
		return errors.New("at least one module is required")
	}
	return nil
}

// Evaluation is the result of the resolve phase.
type Evaluation struct {
	Registry *option.Registry
	Modules  []*module.Module
	Config   *resolve.Configuration
}

// Plan is the result of the compose phase.
type Plan struct {
	*Evaluation

	Store   *recipe.Store
	Closure *closure.Closure

	// Keys maps every recipe in the closure to its stable key.
	Keys map[string]string
}

// Result is the result of a build run.
type Result struct {
	*Plan

	// RunID identifies the run in logs.
	RunID  string
	Report *builder.Report
}
