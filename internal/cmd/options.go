package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/internal/output"
)

// OptionInfo is one registered option as printed by the options command.
type OptionInfo struct {
	Path        string `json:"path" yaml:"path"`
	Type        string `json:"type" yaml:"type"`
	Strategy    string `json:"strategy" yaml:"strategy"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// NewOptionsCmd creates the options command.
func NewOptionsCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var schemasFlag []string
	var outputFlag string

	c := &cobra.Command{
		Use:   "options",
		Short: "List registered options",
		Long: `List every option of the built-in schema and of the given schema files,
with its type, merge strategy and default.

Examples:
  strata options
  strata options --schema kiosk-options.yaml -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runOptions(c, cfg, schemasFlag, outputFlag)
		},
	}

	c.Flags().StringArrayVar(&schemasFlag, "schema", nil, "Additional option schema file (can be repeated)")
	c.Flags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, yaml, json")
	return c
}

func runOptions(c *cobra.Command, cfg *cmdtypes.GlobalConfig, schemas []string, outputFmt string) error {
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
	opts := cmdutil.PipelineOptions(cfg, &cmdutil.ModuleFlags{Schemas: schemas}, nil, nil)
	reg, err := p.Schema(opts.Schemas)
	if err != nil {
		return cmdutil.Exit("loading schema failed", err)
	}

	infos := optionInfos(reg.Options())
	if format == output.FormatTable {
		tbl := output.NewTable("OPTION", "TYPE", "STRATEGY", "DEFAULT")
		for _, o := range infos {
			def := fmt.Sprintf("%v", o.Default)
			if o.Required {
				def = "(required)"
			}
			tbl.Row(o.Path, o.Type, o.Strategy, def)
		}
		fmt.Fprintln(c.OutOrStdout(), tbl.String())
		return nil
	}

	data, err := output.Marshal(infos, format)
	if err != nil {
		return err
	}
	_, err = c.OutOrStdout().Write(data)
	return err
}

func optionInfos(opts []*option.Option) []OptionInfo {
	infos := make([]OptionInfo, 0, len(opts))
	for _, o := range opts {
		infos = append(infos, OptionInfo{
			Path:        o.Path,
			Type:        o.Type.String(),
			Strategy:    string(o.Strategy),
			Default:     o.Default,
			Required:    !o.HasDefault,
			Description: o.Description,
		})
	}
	return infos
}
