package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/session"
)

// NewSessionCmd creates the session command.
func NewSessionCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var mf cmdutil.ModuleFlags
	var rf cmdutil.RecipeFlags

	c := &cobra.Command{
		Use:   "session",
		Short: "Build the session package and print the launch handoff",
		Long: `Build the closure of the resolved configuration and print, as JSON, the
command the session launcher should run for session.target.

Relative executables of session.targets resolve inside the artifact of the
session.package recipe.

Examples:
  strata session -m base.yaml -m host.yaml -r recipes.yaml`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runSession(c, cfg, &mf, &rf)
		},
	}

	mf.AddTo(c)
	rf.AddTo(c)
	return c
}

func runSession(c *cobra.Command, cfg *cmdtypes.GlobalConfig, mf *cmdutil.ModuleFlags, rf *cmdutil.RecipeFlags) error {
	ctx := c.Context()
	defer writeMetrics(cfg)

	p, err := cmdutil.NewPipeline(cfg)
	if err != nil {
		return err
	}
	result, err := p.Build(ctx, cmdutil.PipelineOptions(cfg, mf, rf, nil))
	if err != nil {
		return cmdutil.Exit("build failed", err)
	}
	cmdutil.WriteReport(result.Report)
	if err := result.Report.Err(); err != nil {
		return cmdutil.Exit("build failed", err)
	}

	handoff, err := session.Resolve(result.Config, result.Report.Artifacts())
	if err != nil {
		return cmdutil.Exit("session resolution failed", err)
	}

	var launcher session.Launcher = session.JSONLauncher{W: c.OutOrStdout()}
	return launcher.Launch(ctx, handoff)
}
