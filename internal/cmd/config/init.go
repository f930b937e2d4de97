package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/config"
	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/output"
)

// configHeader is written above the generated configuration.
const configHeader = "# strata CLI configuration\n# Environment: STRATA_CACHE_DIR, STRATA_WORKERS, STRATA_HASH\n\n"

// NewConfigInitCmd creates the config init command.
func NewConfigInitCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var forceFlag bool

	c := &cobra.Command{
		Use:   "init",
		Short: "Create a new strata configuration file",
		Long: `Create a new strata configuration file with default values.

The configuration file is created at ~/.strata/config.yaml by default.
Use --config flag to specify a different location.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runInit(c, cfg, forceFlag)
		},
	}

	c.Flags().BoolVarP(&forceFlag, "force", "f", false, "Overwrite existing config file")
	return c
}

func runInit(c *cobra.Command, cfg *cmdtypes.GlobalConfig, force bool) error {
	path, err := configPath(cfg)
	if err != nil {
		return err
	}

	exists, err := config.ConfigFileExists(path)
	if err != nil {
		return fmt.Errorf("checking config file: %w", err)
	}
	if exists && !force {
		return &cmdtypes.ExitError{
			Code: cmdtypes.ExitGeneralError,
			Err: &oerrors.DetailError{
				Type:     "configuration already exists",
				Message:  "refusing to overwrite the existing configuration",
				Location: path,
				Hint:     "Use --force to overwrite.",
			},
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append([]byte(configHeader), data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	output.Debug("config file written", "path", path, "force", force)
	fmt.Fprintln(c.OutOrStdout(), output.FormatCheckmark("Config file created: "+path))
	return nil
}
