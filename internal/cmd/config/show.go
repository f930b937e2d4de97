package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/output"
)

// NewConfigShowCmd creates the config show command.
func NewConfigShowCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var sourcesFlag bool

	c := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration after applying flags, STRATA_*
environment variables, the config file and defaults, in that order.

With --sources every value is listed with where it came from.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runShow(c, cfg, sourcesFlag)
		},
	}

	c.Flags().BoolVar(&sourcesFlag, "sources", false, "Show the source of every value")
	return c
}

func runShow(c *cobra.Command, cfg *cmdtypes.GlobalConfig, sources bool) error {
	if cfg.ResolveErr != nil {
		return &cmdtypes.ExitError{Code: cmdtypes.ExitGeneralError, Err: fmt.Errorf("resolving configuration: %w", cfg.ResolveErr)}
	}

	if sources {
		tbl := output.NewTable("KEY", "VALUE", "SOURCE")
		for _, v := range cfg.Resolved.Values {
			tbl.Row(v.Key, v.Value, string(v.Source))
		}
		fmt.Fprintln(c.OutOrStdout(), tbl.String())
		return nil
	}

	data, err := output.Marshal(cfg.Resolved.Config, output.FormatYAML)
	if err != nil {
		return err
	}
	_, err = c.OutOrStdout().Write(data)
	return err
}
