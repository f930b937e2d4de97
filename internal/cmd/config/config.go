// Package config provides CLI command implementations for the config command group.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  `Configuration management for the strata CLI.`,
	}

	c.AddCommand(NewConfigInitCmd(cfg))
	c.AddCommand(NewConfigShowCmd(cfg))
	c.AddCommand(NewConfigVetCmd(cfg))

	return c
}

// configPath returns the expanded config file path: --config, then
// STRATA_CONFIG, then ~/.strata/config.yaml.
func configPath(cfg *cmdtypes.GlobalConfig) (string, error) {
	path := cfg.ConfigFlag
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	if path == "" {
		paths, err := config.DefaultPaths()
		if err != nil {
			return "", fmt.Errorf("getting config file path: %w", err)
		}
		path = paths.ConfigFile
	}

	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("expanding config path: %w", err)
	}
	return expanded, nil
}
