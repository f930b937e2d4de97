// Package closure computes the set of recipes a resolved configuration
// needs and a deterministic order to build them in.
package closure

import (
	"errors"
	"fmt"
	"sort"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/internal/recipe"
	"github.com/opmodel/strata/internal/resolve"
)

// OutputsOption is the mapping option whose entries name outputs.
const OutputsOption = "outputs"

// Options narrows a composition.
type Options struct {
	// Outputs restricts the roots to these named outputs. Empty means every
	// recipe the configuration references.
	Outputs []string
}

// Closure is a build plan: every recipe reachable from the roots, in
// dependency order, plus the configuration it was composed from.
type Closure struct {
	Config *resolve.Configuration

	// Order lists recipes so that dependencies come first.
	Order []string

	// Roots are the recipes the configuration references directly.
	Roots []string

	outputs map[string]string
	deps    map[string][]string
}

// Output returns the recipe behind a named output.
func (c *Closure) Output(name string) (string, bool) {
	r, ok := c.outputs[name]
	return r, ok
}

// Outputs returns the declared output names, sorted.
func (c *Closure) Outputs() []string {
	names := make([]string, 0, len(c.outputs))
	for n := range c.outputs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Deps returns the direct dependencies of a recipe in the plan.
func (c *Closure) Deps(name string) []string {
	return c.deps[name]
}

// Contains reports whether the recipe is part of the plan.
func (c *Closure) Contains(name string) bool {
	_, ok := c.deps[name]
	return ok
}

// NamedOutputs returns every declared output of the configuration: entries of
// the outputs mapping by key, and every recipe-typed scalar option by path.
// A mapping entry wins over a scalar option of the same name. Empty
// references declare nothing.
func NamedOutputs(cfg *resolve.Configuration) map[string]string {
	out := make(map[string]string)
	for _, v := range cfg.Values() {
		if v.Path == OutputsOption || v.Type.Kind != option.KindScalar || v.Type.Elem != option.Recipe {
			continue
		}
		if s, _ := v.Value.(string); s != "" {
			out[v.Path] = s
		}
	}
	for k, v := range cfg.Map(OutputsOption) {
		if s, _ := v.(string); s != "" {
			out[k] = s
		}
	}
	return out
}

// Compose walks recipe references from the configuration through the store.
//
// Every unknown recipe name is reported. A dependency cycle fails with one
// witness cycle and no plan. The order is Kahn's algorithm taken layer by
// layer: recipes by depth (longest dependency chain below them), then name.
func Compose(cfg *resolve.Configuration, store *recipe.Store, opts Options) (*Closure, error) {
	outputs := NamedOutputs(cfg)

	roots, err := selectRoots(cfg, outputs, opts)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string)
	var errs []error
	var visit func(name, via string)
	visit = func(name, via string) {
		if _, seen := deps[name]; seen {
			return
		}
		r, err := store.Get(name)
		if err != nil {
			errs = append(errs, &oerrors.RecipeError{Kind: oerrors.ErrUnknownRecipe, Recipe: name, Detail: "referenced by " + via})
			return
		}
		deps[name] = append([]string(nil), r.Deps...)
		sort.Strings(deps[name])
		for _, d := range deps[name] {
			visit(d, "recipe "+name)
		}
	}
	for _, root := range roots {
		visit(root.recipe, root.via)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cycle := findCycle(deps); cycle != nil {
		return nil, &oerrors.RecipeError{Kind: oerrors.ErrCyclicDependency, Cycle: cycle}
	}

	rootNames := make([]string, 0, len(roots))
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		if !seen[r.recipe] {
			seen[r.recipe] = true
			rootNames = append(rootNames, r.recipe)
		}
	}
	sort.Strings(rootNames)

	return &Closure{
		Config:  cfg,
		Order:   order(deps),
		Roots:   rootNames,
		outputs: outputs,
		deps:    deps,
	}, nil
}

type root struct {
	recipe string
	via    string
}

func selectRoots(cfg *resolve.Configuration, outputs map[string]string, opts Options) ([]root, error) {
	var roots []root
	if len(opts.Outputs) > 0 {
		var errs []error
		for _, name := range opts.Outputs {
			r, ok := outputs[name]
			if !ok {
				errs = append(errs, unknownOutput(name, outputs))
				continue
			}
			roots = append(roots, root{recipe: r, via: "output " + name})
		}
		return roots, errors.Join(errs...)
	}

	for _, v := range cfg.Values() {
		for _, ref := range option.RecipeRefs(v.Type, v.Value) {
			roots = append(roots, root{recipe: ref, via: "option " + v.Path})
		}
	}
	return roots, nil
}

func unknownOutput(name string, outputs map[string]string) error {
	names := make([]string, 0, len(outputs))
	for n := range outputs {
		names = append(names, n)
	}
	sort.Strings(names)
	return &oerrors.RecipeError{Kind: oerrors.ErrUnknownOutput, Recipe: name, Detail: fmt.Sprintf("declared outputs: %v", names)}
}

// findCycle returns one cycle as names with the first repeated at the end,
// or nil. Nodes and edges are visited in name order so the witness is
// stable.
func findCycle(deps map[string][]string) []string {
	const (
		white = iota
		gray
		black
	)
	names := sortedKeys(deps)
	color := make(map[string]int, len(names))
	var stack []string
	var cycle []string

	var dfs func(n string) bool
	dfs = func(n string) bool {
		color[n] = gray
		stack = append(stack, n)
		for _, d := range deps[n] {
			switch color[d] {
			case white:
				if dfs(d) {
					return true
				}
			case gray:
				for i, s := range stack {
					if s == d {
						cycle = append(append([]string(nil), stack[i:]...), d)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, n := range names {
		if color[n] == white && dfs(n) {
			return cycle
		}
	}
	return nil
}

// order sorts an acyclic graph by depth, then name.
func order(deps map[string][]string) []string {
	depth := make(map[string]int, len(deps))
	var measure func(n string) int
	measure = func(n string) int {
		if d, ok := depth[n]; ok {
			return d
		}
		d := 0
		for _, dep := range deps[n] {
			if dd := measure(dep) + 1; dd > d {
				d = dd
			}
		}
		depth[n] = d
		return d
	}

	names := sortedKeys(deps)
	for _, n := range names {
		measure(n)
	}
	sort.SliceStable(names, func(i, j int) bool {
		if depth[names[i]] != depth[names[j]] {
			return depth[names[i]] < depth[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
