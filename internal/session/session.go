// Package session turns a resolved configuration and its built artifacts
// into the command handed to the session launcher.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opmodel/strata/internal/builder"
	oerrors "github.com/opmodel/strata/internal/errors"
)

// Option paths read by Resolve.
const (
	TargetOption      = "session.target"
	TargetsOption     = "session.targets"
	PackageOption     = "session.package"
	EnvironmentOption = "session.environment"
	LastUserOption    = "session.lastUserPath"
)

// Config is the subset of a resolved configuration a handoff needs.
type Config interface {
	String(path string) string
	Map(path string) map[string]any
}

// Handoff is what the launcher executes.
type Handoff struct {
	Target string   `json:"target"`
	Exec   string   `json:"exec"`
	Args   []string `json:"args"`
	Env    []string `json:"env"`

	// LastUserPath is where the launcher records the user that logged in.
	LastUserPath string `json:"lastUserPath,omitempty"`
}

// Launcher starts a session. Implementations live outside strata; the
// compositor and display backend are external.
type Launcher interface {
	Launch(ctx context.Context, h Handoff) error
}

// Resolve builds the handoff for the configured target.
//
// The target's command is split on whitespace. A relative executable
// containing a slash, or any bare name when session.package is set, is
// resolved inside the package artifact. Bare names without a package are
// left for the launcher's PATH lookup.
func Resolve(cfg Config, artifacts map[string]builder.Artifact) (Handoff, error) {
	target := cfg.String(TargetOption)
	raw, ok := cfg.Map(TargetsOption)[target]
	if !ok {
		return Handoff{}, oerrors.NewNotFoundError(
			fmt.Sprintf("session target %q is not declared in %s", target, TargetsOption),
			"", "declared targets: "+strings.Join(targetNames(cfg), ", "))
	}
	command, _ := raw.(string)
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return Handoff{}, oerrors.NewOptionError(oerrors.ErrValidation, TargetsOption+"."+target, "", "empty command")
	}

	exec := argv[0]
	if pkg := cfg.String(PackageOption); pkg != "" && !filepath.IsAbs(exec) {
		art, ok := artifacts[pkg]
		if !ok {
			return Handoff{}, &oerrors.RecipeError{Kind: oerrors.ErrNotFound, Recipe: pkg, Detail: "session package was not built"}
		}
		exec = filepath.Join(art.Path, exec)
	} else if !filepath.IsAbs(exec) && strings.Contains(exec, "/") {
		return Handoff{}, oerrors.NewOptionError(oerrors.ErrValidation, TargetsOption+"."+target, "",
			"relative executable %s needs %s", exec, PackageOption)
	}

	return Handoff{
		Target:       target,
		Exec:         exec,
		Args:         argv[1:],
		Env:          environment(cfg, target),
		LastUserPath: cfg.String(LastUserOption),
	}, nil
}

func environment(cfg Config, target string) []string {
	vars := cfg.Map(EnvironmentOption)
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%v", k, vars[k]))
	}
	return append(env, "STRATA_SESSION="+target)
}

func targetNames(cfg Config) []string {
	targets := cfg.Map(TargetsOption)
	names := make([]string, 0, len(targets))
	for n := range targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// JSONLauncher writes the handoff as JSON for an external launcher.
type JSONLauncher struct {
	W io.Writer
}

// Launch implements Launcher.
func (l JSONLauncher) Launch(_ context.Context, h Handoff) error {
	enc := json.NewEncoder(l.W)
	enc.SetIndent("", "  ")
	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("writing session handoff: %w", err)
	}
	return nil
}
