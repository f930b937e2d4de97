package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/export"
	"github.com/opmodel/strata/internal/history"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/pipeline"
)

// NewBuildCmd creates the build command.
func NewBuildCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var mf cmdutil.ModuleFlags
	var rf cmdutil.RecipeFlags
	var outLinkFlag string

	c := &cobra.Command{
		Use:   "build OUTPUT",
		Short: "Build a named output",
		Long: `Build a named output of the resolved configuration.

Modules are merged, the recipes the output needs are built in dependency
order, and the artifact path is printed. Recipes whose inputs did not
change are served from the cache.

Arguments:
  OUTPUT  An entry of the outputs option, or a recipe-typed option path

Examples:
  # Build the system image
  strata build image -m base.yaml -m host.yaml -r recipes.yaml

  # Build and point ./result at the artifact
  strata build image -m base.yaml -r recipes.yaml --out-link result`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runBuild(c, args[0], cfg, &mf, &rf, outLinkFlag)
		},
	}

	mf.AddTo(c)
	rf.AddTo(c)
	c.Flags().StringVar(&outLinkFlag, "out-link", "",
		"Create or replace a symlink to the artifact at this path")
	return c
}

func runBuild(c *cobra.Command, name string, cfg *cmdtypes.GlobalConfig, mf *cmdutil.ModuleFlags, rf *cmdutil.RecipeFlags, outLink string) error {
	ctx := c.Context()
	defer writeMetrics(cfg)

	p, err := cmdutil.NewPipeline(cfg)
	if err != nil {
		return err
	}

	var result *pipeline.Result
	err = output.RunWithSpinner(ctx, func() error {
		var buildErr error
		result, buildErr = p.Build(ctx, cmdutil.PipelineOptions(cfg, mf, rf, []string{name}))
		return buildErr
	}, output.WithTitle(fmt.Sprintf("Building %s...", name)))
	if err != nil {
		return cmdutil.Exit("build failed", err)
	}

	cmdutil.WriteReport(result.Report)
	if err := result.Report.Err(); err != nil {
		return cmdutil.Exit("build failed", err)
	}

	res, err := export.Export(result.Closure, result.Report, name, outLink)
	if err != nil {
		return cmdutil.Exit("export failed", err)
	}
	if res.Link != "" {
		output.Info("linked output", "output", name, "link", res.Link)
		recordGeneration(p, res, result.RunID)
	}
	output.Info(output.FormatCheckmark(fmt.Sprintf("%s built", name)), "hash", res.Hash, "run", result.RunID)
	fmt.Fprintln(c.OutOrStdout(), res.Path)
	return nil
}

// recordGeneration appends the export to the link's history. A history
// failure never fails the build.
func recordGeneration(p *pipeline.Pipeline, res export.Result, runID string) {
	store, err := p.OpenHistory()
	if err == nil {
		_, err = store.Record(res.Link, history.Generation{
			Output: res.Output,
			Recipe: res.Recipe,
			Hash:   res.Hash,
			Path:   res.Path,
			RunID:  runID,
		})
	}
	if err != nil {
		output.Warn("history not recorded", "link", res.Link, "error", err)
	}
}

// writeMetrics exports metrics after a build, successful or not.
func writeMetrics(cfg *cmdtypes.GlobalConfig) {
	if err := cmdutil.WriteMetrics(cfg.MetricsFile); err != nil {
		output.Warn("metrics not written", "error", err)
	}
}
