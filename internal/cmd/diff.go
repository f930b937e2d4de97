package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/output"
)

// NewDiffCmd creates the diff command.
func NewDiffCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var mf cmdutil.ModuleFlags
	var againstFlag []string

	c := &cobra.Command{
		Use:   "diff",
		Short: "Compare two resolved configurations",
		Long: `Resolve two sets of modules and show how the resulting configurations
differ. Both sides share the --schema files.

Examples:
  # What does the host module change?
  strata diff -m base.yaml --against base.yaml --against host.yaml`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runDiff(c, cfg, &mf, againstFlag)
		},
	}

	mf.AddTo(c)
	c.Flags().StringArrayVar(&againstFlag, "against", nil,
		"Module of the configuration to compare with (can be repeated)")
	_ = c.MarkFlagRequired("against")
	return c
}

func runDiff(c *cobra.Command, cfg *cmdtypes.GlobalConfig, mf *cmdutil.ModuleFlags, against []string) error {
	p, err := cmdutil.NewPipeline(cfg)
	if err != nil {
		return err
	}

	from, err := p.Resolve(c.Context(), cmdutil.PipelineOptions(cfg, mf, nil, nil))
	if err != nil {
		return cmdutil.Exit("evaluation failed", err)
	}
	to, err := p.Resolve(c.Context(), cmdutil.PipelineOptions(cfg, &cmdutil.ModuleFlags{Modules: against, Schemas: mf.Schemas}, nil, nil))
	if err != nil {
		return cmdutil.Exit("evaluation of --against failed", err)
	}

	fromYAML, err := output.Marshal(from.Config.Tree(), output.FormatYAML)
	if err != nil {
		return err
	}
	toYAML, err := output.Marshal(to.Config.Tree(), output.FormatYAML)
	if err != nil {
		return err
	}

	report, err := output.DiffYAML(strings.Join(mf.Modules, ","), fromYAML, strings.Join(against, ","), toYAML, output.IsTTY())
	if err != nil {
		return err
	}
	if report == "" {
		output.Info("no differences")
		return nil
	}
	fmt.Fprintln(c.OutOrStdout(), report)
	return nil
}
