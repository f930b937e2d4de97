package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/resolve"
)

// NewEvalCmd creates the eval command.
func NewEvalCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var mf cmdutil.ModuleFlags
	var (
		outputFlag  string
		explainFlag bool
	)

	c := &cobra.Command{
		Use:   "eval",
		Short: "Print the resolved configuration",
		Long: `Merge configuration modules and print the resolved configuration.

With --explain every option is listed with the definitions that won and the
ones they shadowed.

Examples:
  # Resolved configuration as YAML
  strata eval -m base.yaml -m host.yaml

  # Why does an option have its value?
  strata eval -m base.yaml -m host.yaml --explain`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runEval(c, cfg, &mf, outputFlag, explainFlag)
		},
	}

	mf.AddTo(c)
	c.Flags().StringVarP(&outputFlag, "output", "o", "yaml", "Output format: yaml, json")
	c.Flags().BoolVar(&explainFlag, "explain", false, "Show the provenance of every value")
	return c
}

func runEval(c *cobra.Command, cfg *cmdtypes.GlobalConfig, mf *cmdutil.ModuleFlags, outputFmt string, explain bool) error {
	format, ok := output.ParseOutputFormat(outputFmt)
	if !ok || format == output.FormatTable {
		return &cmdtypes.ExitError{
			Code: cmdtypes.ExitGeneralError,
			Err:  fmt.Errorf("invalid output format %q (valid: yaml, json)", outputFmt),
		}
	}

	p, err := cmdutil.NewPipeline(cfg)
	if err != nil {
		return err
	}
	ev, err := p.Resolve(c.Context(), cmdutil.PipelineOptions(cfg, mf, nil, nil))
	if err != nil {
		return cmdutil.Exit("evaluation failed", err)
	}

	if explain {
		fmt.Fprint(c.OutOrStdout(), resolve.Explain(ev.Config))
		return nil
	}

	data, err := output.Marshal(ev.Config.Tree(), format)
	if err != nil {
		return err
	}
	_, err = c.OutOrStdout().Write(data)
	return err
}
