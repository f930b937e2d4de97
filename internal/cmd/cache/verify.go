package cache

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/cmdutil"
	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/output"
)

// Verify statuses.
const (
	statusValid   = "valid"
	statusMissing = "missing"
	statusCorrupt = "corrupt"
)

// NewCacheVerifyCmd creates the cache verify command.
func NewCacheVerifyCmd(cfg *cmdtypes.GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-hash every cached artifact",
		Long: `Re-hash every artifact in the build cache and compare it with the hash
recorded when it was built.

Entries whose artifact was removed are reported as missing; they still pin
the hash of the next build. Artifacts that no longer match their entry are
reported as corrupt and the command exits with the cache corruption code.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runVerify(c, cfg)
		},
	}
}

func runVerify(c *cobra.Command, cfg *cmdtypes.GlobalConfig) error {
	bc, err := openCache(cfg)
	if err != nil {
		return err
	}

	var errs []error
	var missing int
	entries := bc.Entries()
	for _, e := range entries {
		status := statusValid
		switch err := bc.Verify(e); {
		case err == nil:
		case errors.Is(err, oerrors.ErrNotFound):
			status = statusMissing
			missing++
		default:
			status = statusCorrupt
			errs = append(errs, err)
		}
		fmt.Fprintln(c.OutOrStdout(), output.FormatRecipeLine(e.Name, status))
	}

	if err := errors.Join(errs...); err != nil {
		return cmdutil.Exit(fmt.Sprintf("%d of %d cache entries are corrupt", len(errs), len(entries)), err)
	}
	output.Info(output.FormatCheckmark("cache verified"), "entries", len(entries), "missing", missing)
	return nil
}
