// Package cmd provides CLI command implementations.
package cmd

import (
	"github.com/spf13/cobra"

	cachecmd "github.com/opmodel/strata/internal/cmd/cache"
	configcmd "github.com/opmodel/strata/internal/cmd/config"
	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/config"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/version"
)

// rootFlags are the persistent flags of the root command.
type rootFlags struct {
	config      string
	verbose     bool
	timestamps  bool
	cacheDir    string
	workers     int
	hash        string
	metricsFile string
}

// NewRootCmd creates the root command for the strata CLI.
func NewRootCmd() *cobra.Command {
	var flags rootFlags
	cfg := &cmdtypes.GlobalConfig{}

	rootCmd := &cobra.Command{
		Use:   "strata",
		Short: "Layered configuration composition and content-addressed builds",
		Long: `strata merges prioritized configuration modules into one resolved
configuration, derives the recipes it needs, and builds them into a
content-addressed cache.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeGlobals(cmd, &flags, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "Path to config file (env: STRATA_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&flags.timestamps, "timestamps", true, "Show timestamps in log output")
	rootCmd.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", "", "Build cache directory (env: STRATA_CACHE_DIR)")
	rootCmd.PersistentFlags().IntVar(&flags.workers, "workers", 0, "Recipes built in parallel (env: STRATA_WORKERS)")
	rootCmd.PersistentFlags().StringVar(&flags.hash, "hash", "", "Content hash algorithm: sha256, blake3 (env: STRATA_HASH)")
	rootCmd.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after building")

	rootCmd.AddCommand(NewInitCmd(cfg))
	rootCmd.AddCommand(NewBuildCmd(cfg))
	rootCmd.AddCommand(NewEvalCmd(cfg))
	rootCmd.AddCommand(NewPlanCmd(cfg))
	rootCmd.AddCommand(NewDiffCmd(cfg))
	rootCmd.AddCommand(NewSessionCmd(cfg))
	rootCmd.AddCommand(NewOptionsCmd(cfg))
	rootCmd.AddCommand(NewHistoryCmd(cfg))
	rootCmd.AddCommand(cachecmd.NewCacheCmd(cfg))
	rootCmd.AddCommand(configcmd.NewConfigCmd(cfg))
	rootCmd.AddCommand(NewVersionCmd(cfg))

	return rootCmd
}

// initializeGlobals resolves configuration and sets up logging.
func initializeGlobals(cmd *cobra.Command, flags *rootFlags, cfg *cmdtypes.GlobalConfig) error {
	cfg.ConfigFlag = flags.config
	cfg.MetricsFile = flags.metricsFile
	cfg.Verbose = flags.verbose

	resolved, err := config.Resolve(config.ResolveOptions{
		ConfigFlag:   flags.config,
		CacheDirFlag: flags.cacheDir,
		WorkersFlag:  flags.workers,
		HashFlag:     flags.hash,
	})
	// Don't fail here - config init and vet must work on a broken file
	cfg.Resolved = resolved
	cfg.ResolveErr = err

	// Resolve timestamps: flag (if explicitly set) > config > default (nil = true)
	logCfg := output.LogConfig{Verbose: flags.verbose}
	if cmd.Flags().Changed("timestamps") {
		logCfg.Timestamps = output.BoolPtr(flags.timestamps)
	} else if resolved != nil && resolved.Config.Log.Timestamps != nil {
		logCfg.Timestamps = resolved.Config.Log.Timestamps
	}
	output.SetupLogging(logCfg)

	info := version.Get()
	output.Debug("strata started", "version", info.Version, "cue_sdk", info.CUESDKVersion)
	if err != nil {
		output.Debug("config resolution failed", "error", err)
		return nil
	}
	config.LogResolvedValues(resolved.Values)
	return nil
}
