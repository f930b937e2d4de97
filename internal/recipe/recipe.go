// Package recipe holds build recipes and computes their stable keys.
//
// Recipes reference each other by name. The store is an arena: it owns every
// recipe and edges are names resolved through it, never pointers between
// recipes.
package recipe

import (
	"fmt"
	"regexp"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/pkg/hashenc"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// Source is where a recipe's inputs come from: a local path, or a remote
// URL pinned to a revision.
type Source struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
	Rev  string `json:"rev,omitempty"`
}

// IsZero reports whether no source is declared.
func (s Source) IsZero() bool {
	return s.Path == "" && s.URL == ""
}

// IsRemote reports whether the source must be fetched.
func (s Source) IsRemote() bool {
	return s.URL != ""
}

func (s Source) String() string {
	if s.IsRemote() {
		return s.URL + "@" + s.Rev
	}
	return s.Path
}

// Recipe is an immutable build description.
type Recipe struct {
	Name   string
	Source Source

	// Steps are shell commands run in order in an isolated working directory.
	Steps []string

	// Deps name the recipes whose artifacts this one consumes.
	Deps []string

	// OutputHash is the declared expected content hash, empty when unpinned.
	OutputHash string

	// File is the recipe file that declared it, for error messages.
	File string
}

// IsAggregate reports whether the recipe only links its dependencies.
func (r *Recipe) IsAggregate() bool {
	return len(r.Steps) == 0 && len(r.Deps) > 0
}

// Expected parses the declared output hash.
func (r *Recipe) Expected() (hashenc.Digest, bool, error) {
	if r.OutputHash == "" {
		return hashenc.Digest{}, false, nil
	}
	d, err := hashenc.Parse(r.OutputHash)
	if err != nil {
		return hashenc.Digest{}, false, err
	}
	return d, true, nil
}

// Validate checks the recipe in isolation. References to other recipes are
// checked by the closure composer.
func (r *Recipe) Validate() error {
	invalid := func(format string, args ...any) error {
		return &oerrors.RecipeError{Kind: oerrors.ErrValidation, Recipe: r.Name, Detail: fmt.Sprintf(format, args...)}
	}

	if !namePattern.MatchString(r.Name) {
		return invalid("invalid recipe name %q", r.Name)
	}
	if r.Source.Path != "" && r.Source.URL != "" {
		return invalid("source declares both path and url")
	}
	if r.Source.IsRemote() && r.Source.Rev == "" {
		return invalid("remote source %s needs a rev", r.Source.URL)
	}
	if len(r.Steps) == 0 && len(r.Deps) == 0 && r.Source.IsZero() {
		return invalid("recipe has no steps, dependencies or source")
	}
	if r.IsAggregate() && !r.Source.IsZero() {
		return invalid("a recipe without steps cannot combine a source with dependencies")
	}
	seen := make(map[string]bool, len(r.Deps))
	for _, d := range r.Deps {
		if !namePattern.MatchString(d) {
			return invalid("invalid dependency name %q", d)
		}
		if seen[d] {
			return invalid("dependency %s listed twice", d)
		}
		seen[d] = true
	}
	if _, _, err := r.Expected(); err != nil {
		return invalid("outputHash: %v", err)
	}
	return nil
}
