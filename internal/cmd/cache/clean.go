package cache

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/output"
)

// NewCacheCleanCmd creates the cache clean command.
func NewCacheCleanCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove staging directories left by interrupted builds",
		Long: `Remove staging directories left by interrupted builds.

Staging directories of builds that are still running are removed as well,
so run this only while no build uses the cache.`,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			bc, err := openCache(cfg)
			if err != nil {
				return err
			}
			if err := bc.CleanStaging(); err != nil {
				return cmdutil.Exit("cleaning cache failed", err)
			}
			output.Info("staging directories removed", "cache", bc.Dir())
			return nil
		},
	}
}
