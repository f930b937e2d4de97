// Package cmdutil provides shared command utilities for strata subcommands.
// It centralizes input flag groups, pipeline construction, error rendering
// and metrics export.
package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/pipeline"
)

// ModuleFlags holds flags common to commands that resolve a configuration
// (build, eval, plan, diff, session, options).
type ModuleFlags struct {
	Modules []string
	Schemas []string
}

// AddTo registers the module flags on the given cobra command.
func (f *ModuleFlags) AddTo(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.Modules, "module", "m", nil,
		"Configuration module file (can be repeated)")
	cmd.Flags().StringArrayVar(&f.Schemas, "schema", nil,
		"Additional option schema file (can be repeated)")
}

// RecipeFlags holds flags for commands that compose a closure
// (build, plan, session).
type RecipeFlags struct {
	Recipes []string
}

// AddTo registers the recipe flags on the given cobra command.
func (f *RecipeFlags) AddTo(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.Recipes, "recipes", "r", nil,
		"Recipe file (can be repeated)")
}

// PipelineOptions combines flag groups into pipeline options. Schemas from
// the configuration file come before --schema files.
func PipelineOptions(cfg *cmdtypes.GlobalConfig, mf *ModuleFlags, rf *RecipeFlags, outputs []string) pipeline.Options {
	opts := pipeline.Options{Outputs: outputs}
	opts.Schemas = append(opts.Schemas, cfg.Config().Schemas...)
	if mf != nil {
		opts.Modules = mf.Modules
		opts.Schemas = append(opts.Schemas, mf.Schemas...)
	}
	if rf != nil {
		opts.Recipes = rf.Recipes
	}
	return opts
}
