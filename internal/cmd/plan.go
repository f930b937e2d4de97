package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/pipeline"
)

// Plan status values.
const (
	planCached = "cached"
	planBuild  = "build"
)

// PlanEntry is one recipe of a printed plan.
type PlanEntry struct {
	Recipe string   `json:"recipe" yaml:"recipe"`
	Key    string   `json:"key" yaml:"key"`
	Status string   `json:"status" yaml:"status"`
	Deps   []string `json:"deps,omitempty" yaml:"deps,omitempty"`
}

// NewPlanCmd creates the plan command.
func NewPlanCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var mf cmdutil.ModuleFlags
	var rf cmdutil.RecipeFlags
	var outputFlag string

	c := &cobra.Command{
		Use:   "plan [OUTPUT...]",
		Short: "Show the recipes a build would run",
		Long: `Compose the build closure and show every recipe in build order with its
key and whether the cache already holds it. Nothing is built.

Without arguments the closure covers every recipe the configuration
references.

Examples:
  strata plan -m base.yaml -r recipes.yaml
  strata plan image -m base.yaml -r recipes.yaml -o json`,
		RunE: func(c *cobra.Command, args []string) error {
			return runPlan(c, args, cfg, &mf, &rf, outputFlag)
		},
	}

	mf.AddTo(c)
	rf.AddTo(c)
	c.Flags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, yaml, json")
	return c
}

func runPlan(c *cobra.Command, outputs []string, cfg *cmdtypes.GlobalConfig, mf *cmdutil.ModuleFlags, rf *cmdutil.RecipeFlags, outputFmt string) error {
	format, ok := output.ParseOutputFormat(outputFmt)
	if !ok {
		return &cmdtypes.ExitError{
			Code: cmdtypes.ExitGeneralError,
			Err:  fmt.Errorf("invalid output format %q (valid: %s)", outputFmt, strings.Join(output.ValidFormats(), ", ")),
		}
	}

	p, err := cmdutil.NewPipeline(cfg)
	if err != nil {
		return err
	}
	plan, err := p.Plan(c.Context(), cmdutil.PipelineOptions(cfg, mf, rf, outputs))
	if err != nil {
		return cmdutil.Exit("planning failed", err)
	}

	entries, err := planEntries(p, plan)
	if err != nil {
		return cmdutil.Exit("planning failed", err)
	}

	if format == output.FormatTable {
		tbl := output.NewTable("RECIPE", "KEY", "STATUS", "DEPS").StatusColumn(2)
		for _, e := range entries {
			tbl.Row(e.Recipe, shortKey(e.Key), e.Status, strings.Join(e.Deps, ", "))
		}
		fmt.Fprintln(c.OutOrStdout(), tbl.String())
		return nil
	}

	data, err := output.Marshal(entries, format)
	if err != nil {
		return err
	}
	_, err = c.OutOrStdout().Write(data)
	return err
}

func planEntries(p *pipeline.Pipeline, plan *pipeline.Plan) ([]PlanEntry, error) {
	bc, err := p.OpenCache()
	if err != nil {
		return nil, err
	}

	entries := make([]PlanEntry, 0, len(plan.Closure.Order))
	for _, name := range plan.Closure.Order {
		key := plan.Keys[name]
		status := planBuild
		if _, ok := bc.Get(key); ok {
			status = planCached
		}
		entries = append(entries, PlanEntry{
			Recipe: name,
			Key:    key,
			Status: status,
			Deps:   plan.Closure.Deps(name),
		})
	}
	return entries, nil
}

// shortKey abbreviates a recipe key for tables.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
