// Package export maps named outputs to built artifacts.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opmodel/strata/internal/builder"
	"github.com/opmodel/strata/internal/closure"
	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/output"
)

// Result is an exported output.
type Result struct {
	Output string
	Recipe string
	Path   string
	Hash   string

	// Link is the materialized symlink, empty when none was requested.
	Link string
}

// Export resolves a named output to its artifact path. When link is not
// empty a symlink to the artifact is created there, atomically replacing
// whatever link was there before.
//
// An undeclared name fails with UnknownOutput. An output whose recipe did
// not build reports that recipe's failure.
func Export(c *closure.Closure, report *builder.Report, name, link string) (Result, error) {
	recipeName, ok := c.Output(name)
	if !ok {
		return Result{}, &oerrors.RecipeError{
			Kind:   oerrors.ErrUnknownOutput,
			Recipe: name,
			Detail: fmt.Sprintf("declared outputs: %v", c.Outputs()),
		}
	}

	res, ok := report.Results[recipeName]
	if !ok {
		return Result{}, &oerrors.RecipeError{Kind: oerrors.ErrNotFound, Recipe: recipeName, Detail: "output " + name + " was not part of the build"}
	}
	switch res.Status {
	case builder.StatusFailed:
		return Result{}, res.Err
	case builder.StatusSkipped:
		return Result{}, fmt.Errorf("output %s not built: %w", name, res.Err)
	}

	out := Result{Output: name, Recipe: recipeName, Path: res.Artifact.Path, Hash: res.Artifact.Hash}
	if link != "" {
		if err := ReplaceSymlink(res.Artifact.Path, link); err != nil {
			return Result{}, err
		}
		out.Link = link
		output.Debug("exported output", "output", name, "link", link, "target", res.Artifact.Path)
	}
	return out, nil
}

// ReplaceSymlink points link at target. A temporary link is renamed over
// the old one so readers never see a missing link. An existing directory
// or regular file at link is not replaced.
func ReplaceSymlink(target, link string) error {
	if info, err := os.Lstat(link); err == nil && info.Mode()&os.ModeSymlink == 0 {
		return oerrors.NewValidationError(
			fmt.Sprintf("%s exists and is not a symlink", link),
			link, "", "remove it or choose another --out-link")
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return fmt.Errorf("creating link directory: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp-%d", link, os.Getpid())
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("creating link %s: %w", link, err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing link %s: %w", link, err)
	}
	return nil
}
