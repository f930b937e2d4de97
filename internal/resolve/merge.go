package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/module"
	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/pkg/priority"
)

// Merge resolves modules against the registry.
//
// The result depends only on the multiset of (path, value, priority)
// assignments: module order never changes a value or whether a conflict is
// reported. Every failing option is reported, joined into one error.
func Merge(reg *option.Registry, modules []*module.Module) (*Configuration, error) {
	defs := make(map[string][]Definition)
	var errs []error

	for _, m := range modules {
		for _, a := range m.Assignments {
			if _, err := reg.Lookup(a.Path); err != nil {
				errs = append(errs, oerrors.NewOptionError(oerrors.ErrUnknownOption, a.Path, m.Name, ""))
				continue
			}
			defs[a.Path] = append(defs[a.Path], Definition{
				Module:   m.Name,
				Value:    a.Value,
				Priority: a.Priority,
				Line:     a.Line,
			})
		}
	}

	values := make(map[string]*Value)
	for _, opt := range reg.Options() {
		ds := defs[opt.Path]
		sortDefinitions(ds)

		var (
			v   *Value
			err error
		)
		switch {
		case len(ds) == 0:
			v, err = fromDefault(opt)
		case opt.Strategy == option.Union:
			v = mergeUnion(opt, ds)
		case opt.Strategy == option.Merge:
			v, err = mergeMapping(opt, ds)
		default:
			v, err = mergeOverride(opt, ds)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[opt.Path] = v
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	output.Debug("resolved configuration", "options", len(values), "modules", len(modules))
	return newConfiguration(values), nil
}

// sortDefinitions puts definitions in a canonical order: highest priority
// first, then by module name, line and value. Provenance is reported in this order.
func sortDefinitions(ds []Definition) {
	sort.SliceStable(ds, func(i, j int) bool {
		if c := ds[i].Priority.Compare(ds[j].Priority); c != 0 {
			return c > 0
		}
		if ds[i].Module != ds[j].Module {
			return ds[i].Module < ds[j].Module
		}
		if ds[i].Line != ds[j].Line {
			return ds[i].Line < ds[j].Line
		}
		return fmt.Sprint(ds[i].Value) < fmt.Sprint(ds[j].Value)
	})
}

func fromDefault(opt *option.Option) (*Value, error) {
	if !opt.HasDefault {
		return nil, oerrors.NewOptionError(oerrors.ErrMissingRequiredOption, opt.Path, "", "no module assigns it and it has no default")
	}
	return &Value{
		Path:        opt.Path,
		Type:        opt.Type,
		Value:       opt.Default,
		Priority:    priority.Default,
		FromDefault: true,
	}, nil
}

func topPriority(ds []Definition) priority.Priority {
	ps := make([]priority.Priority, len(ds))
	for i, d := range ds {
		ps[i] = d.Priority
	}
	return priority.Max(ps)
}

// mergeOverride picks the single value at the highest priority level. Two
// differing values at that level conflict, including two force values.
func mergeOverride(opt *option.Option, ds []Definition) (*Value, error) {
	top := topPriority(ds)

	var winners, shadowed []Definition
	for _, d := range ds {
		if d.Priority.Compare(top) == 0 {
			winners = append(winners, d)
		} else {
			shadowed = append(shadowed, d)
		}
	}

	for _, w := range winners[1:] {
		if !option.Equal(w.Value, winners[0].Value) {
			return nil, conflictError(opt.Path, top, winners)
		}
	}

	return &Value{
		Path:     opt.Path,
		Type:     opt.Type,
		Value:    winners[0].Value,
		Priority: top,
		Winners:  winners,
		Shadowed: shadowed,
	}, nil
}

// mergeUnion accumulates set members from every level.
func mergeUnion(opt *option.Option, ds []Definition) *Value {
	var members []any
	for _, d := range ds {
		items, _ := d.Value.([]any)
		members = append(members, items...)
	}
	return &Value{
		Path:     opt.Path,
		Type:     opt.Type,
		Value:    option.SortedSet(members),
		Priority: topPriority(ds),
		Winners:  ds,
	}
}

// mergeMapping unions keys; each key resolves like an override option of
// its own, named path.key in errors.
func mergeMapping(opt *option.Option, ds []Definition) (*Value, error) {
	byKey := make(map[string][]Definition)
	for _, d := range ds {
		m, _ := d.Value.(map[string]any)
		for k, v := range m {
			byKey[k] = append(byKey[k], Definition{Module: d.Module, Value: v, Priority: d.Priority, Line: d.Line})
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(map[string]any, len(keys))
	var (
		winners, shadowed []Definition
		errs              []error
	)
	for _, k := range keys {
		kds := byKey[k]
		sortDefinitions(kds)
		top := topPriority(kds)

		var keyWinners []Definition
		for _, d := range kds {
			single := Definition{Module: d.Module, Value: map[string]any{k: d.Value}, Priority: d.Priority, Line: d.Line}
			if d.Priority.Compare(top) == 0 {
				keyWinners = append(keyWinners, d)
				winners = append(winners, single)
			} else {
				shadowed = append(shadowed, single)
			}
		}
		conflict := false
		for _, w := range keyWinners[1:] {
			if !option.Equal(w.Value, keyWinners[0].Value) {
				errs = append(errs, conflictError(opt.Path+"."+k, top, keyWinners))
				conflict = true
				break
			}
		}
		if !conflict {
			result[k] = keyWinners[0].Value
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sortDefinitions(winners)
	sortDefinitions(shadowed)
	return &Value{
		Path:     opt.Path,
		Type:     opt.Type,
		Value:    result,
		Priority: topPriority(ds),
		Winners:  winners,
		Shadowed: shadowed,
	}, nil
}

// conflictError names every differing definition at the winning level.
// winners must already be in canonical order so the message is stable.
func conflictError(path string, top priority.Priority, winners []Definition) error {
	parts := make([]string, 0, len(winners))
	for _, w := range winners {
		parts = append(parts, fmt.Sprintf("%v (%s)", w.Value, location(w)))
	}
	return oerrors.NewOptionError(oerrors.ErrConflictingDefinition, path, "",
		"differing values at priority %s: %s", top, strings.Join(parts, ", "))
}

func location(d Definition) string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d", d.Module, d.Line)
	}
	return d.Module
}
