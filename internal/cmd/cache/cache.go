// Package cache provides CLI command implementations for the cache command group.
package cache

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
)

// NewCacheCmd creates the cache command group.
func NewCacheCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:   "cache",
		Short: "Build cache management",
		Long:  `Inspect and verify the strata build cache.`,
	}

	c.AddCommand(NewCacheListCmd(cfg))
	c.AddCommand(NewCacheVerifyCmd(cfg))
	c.AddCommand(NewCacheCleanCmd(cfg))

	return c
}
