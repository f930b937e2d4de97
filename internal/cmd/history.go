package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	"github.com/opmodel/strata/internal/export"
	"github.com/opmodel/strata/internal/history"
	"github.com/opmodel/strata/internal/output"
)

// GenerationInfo is one printed generation.
type GenerationInfo struct {
	ID      string `json:"id" yaml:"id"`
	Output  string `json:"output" yaml:"output"`
	Hash    string `json:"hash" yaml:"hash"`
	Path    string `json:"path" yaml:"path"`
	Created string `json:"created" yaml:"created"`
	Current bool   `json:"current" yaml:"current"`
	Missing bool   `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	var outputFlag string
	var switchFlag string

	c := &cobra.Command{
		Use:   "history LINK",
		Short: "List or switch the generations of an out-link",
		Long: `List the artifacts an out-link created by 'strata build --out-link' has
pointed at, newest first.

With --switch the link is pointed back at an earlier generation, which
becomes current. The artifact must still be in the cache.

Examples:
  strata history result
  strata history result --switch gen-1a2b3c4d`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if switchFlag != "" {
				return runHistorySwitch(c, args[0], switchFlag, cfg)
			}
			return runHistory(c, args[0], outputFlag, cfg)
		},
	}

	c.Flags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, yaml, json")
	c.Flags().StringVar(&switchFlag, "switch", "", "Point the link at this generation")
	return c
}

func openHistory(cfg *cmdtypes.GlobalConfig) (*history.Store, error) {
	p, err := cmdutil.NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	store, err := p.OpenHistory()
	if err != nil {
		return nil, cmdutil.Exit("opening history failed", err)
	}
	return store, nil
}

func runHistory(c *cobra.Command, link, outputFmt string, cfg *cmdtypes.GlobalConfig) error {
	format, ok := output.ParseOutputFormat(outputFmt)
	if !ok {
		return &cmdtypes.ExitError{
			Code: cmdtypes.ExitGeneralError,
			Err:  fmt.Errorf("invalid output format %q (valid: %s)", outputFmt, strings.Join(output.ValidFormats(), ", ")),
		}
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	log, err := store.Get(link)
	if err != nil {
		return cmdutil.Exit("reading history failed", err)
	}

	infos := make([]GenerationInfo, 0, len(log.Index))
	for i, g := range log.List() {
		infos = append(infos, GenerationInfo{
			ID:      g.ID,
			Output:  g.Output,
			Hash:    g.Hash,
			Path:    g.Path,
			Created: g.CreatedAt().UTC().Format(time.RFC3339),
			Current: i == 0,
			Missing: g.Missing(),
		})
	}

	if format == output.FormatTable {
		if len(infos) == 0 {
			output.Info("no history", "link", log.Link)
			return nil
		}
		tbl := output.NewTable("GENERATION", "OUTPUT", "HASH", "CREATED", "STATUS")
		for _, g := range infos {
			tbl.Row(g.ID, g.Output, shortKey(g.Hash), g.Created, generationStatus(g))
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

func generationStatus(g GenerationInfo) string {
	switch {
	case g.Missing:
		return "missing"
	case g.Current:
		return "current"
	default:
		return ""
	}
}

func runHistorySwitch(c *cobra.Command, link, id string, cfg *cmdtypes.GlobalConfig) error {
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	log, err := store.Get(link)
	if err != nil {
		return cmdutil.Exit("reading history failed", err)
	}
	g, err := log.Find(id)
	if err != nil {
		return cmdutil.Exit("switch failed", err)
	}
	if g.Missing() {
		return cmdutil.Exit("switch failed", fmt.Errorf("generation %s: artifact %s is no longer present", id, g.Path))
	}

	if err := export.ReplaceSymlink(g.Path, log.Link); err != nil {
		return cmdutil.Exit("switch failed", err)
	}
	if _, err := store.Record(link, *g); err != nil {
		return cmdutil.Exit("switch failed", err)
	}

	output.Info(output.FormatCheckmark(fmt.Sprintf("%s now points at %s", link, id)), "hash", g.Hash)
	fmt.Fprintln(c.OutOrStdout(), g.Path)
	return nil
}
