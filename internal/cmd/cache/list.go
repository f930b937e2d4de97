package cache

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cache"
	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/output"
)

// EntryInfo is one cache entry as printed by cache list.
type EntryInfo struct {
	Recipe    string `json:"recipe" yaml:"recipe"`
	Key       string `json:"key" yaml:"key"`
	Hash      string `json:"hash" yaml:"hash"`
	Created   string `json:"created" yaml:"created"`
	Aggregate bool   `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
	Path      string `json:"path" yaml:"path"`
}

// NewCacheListCmd creates the cache list command.
func NewCacheListCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var outputFlag string

	c := &cobra.Command{
		Use:   "list",
		Short: "List cache entries",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runList(c, cfg, outputFlag)
		},
	}

	c.Flags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, yaml, json")
	return c
}

func runList(c *cobra.Command, cfg *cmdtypes.GlobalConfig, outputFmt string) error {
	format, ok := output.ParseOutputFormat(outputFmt)
	if !ok {
		return &cmdtypes.ExitError{
			Code: cmdtypes.ExitGeneralError,
			Err:  fmt.Errorf("invalid output format %q (valid: %s)", outputFmt, strings.Join(output.ValidFormats(), ", ")),
		}
	}

	bc, err := openCache(cfg)
	if err != nil {
		return err
	}

	infos := entryInfos(bc)
	if format == output.FormatTable {
		tbl := output.NewTable("RECIPE", "KEY", "HASH", "CREATED")
		for _, e := range infos {
			tbl.Row(e.Recipe, e.Key[:min(12, len(e.Key))], e.Hash, e.Created)
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

func entryInfos(bc *cache.Cache) []EntryInfo {
	entries := bc.Entries()
	infos := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, EntryInfo{
			Recipe:    e.Name,
			Key:       e.Key,
			Hash:      e.Hash,
			Created:   e.CreatedAt().UTC().Format("2006-01-02T15:04:05Z"),
			Aggregate: e.Aggregate,
			Path:      bc.ArtifactPath(e.Key, e.Name),
		})
	}
	return infos
}

func openCache(cfg *cmdtypes.GlobalConfig) (*cache.Cache, error) {
	p, err := cmdutil.NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	bc, err := p.OpenCache()
	if err != nil {
		return nil, cmdutil.Exit("opening cache failed", err)
	}
	return bc, nil
}
