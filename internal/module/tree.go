package module

import (
	"fmt"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/pkg/priority"
)

// importsKey is the reserved top-level key listing further module files.
const importsKey = "imports"

// Wrapper keys accepted in YAML and JSON modules:
//
//	{_value: v, _priority: 150}
//	{_value: v, _force: true}
const (
	wrapValue    = "_value"
	wrapPriority = "_priority"
	wrapForce    = "_force"
)

// node is the format-independent parse tree shared by all module syntaxes.
type node struct {
	isMap  bool
	fields []field

	// value holds a leaf: a scalar or a list of plain values.
	value any

	// prio is an explicit marker on this node, nil when absent.
	prio *priority.Priority
	line int
}

type field struct {
	key  string
	node *node
}

func (n *node) lookup(key string) *node {
	for _, f := range n.fields {
		if f.key == key {
			return f.node
		}
	}
	return nil
}

// unwrap resolves a wrapper mapping into its value node and returns the
// effective priority, falling back to inherited.
func unwrap(n *node, inherited priority.Priority) (*node, priority.Priority, error) {
	prio := inherited
	if n.prio != nil {
		prio = *n.prio
	}
	if !n.isMap || n.lookup(wrapValue) == nil {
		return n, prio, nil
	}
	for _, f := range n.fields {
		if f.key != wrapValue && f.key != wrapForce && f.key != wrapPriority {
			// An ordinary mapping that happens to use _value.
			return n, prio, nil
		}
	}
	if f := n.lookup(wrapPriority); f != nil {
		if f.isMap {
			return nil, prio, fmt.Errorf("line %d: %s must be a scalar", f.line, wrapPriority)
		}
		p, err := priority.Parse(fmt.Sprint(f.value))
		if err != nil {
			return nil, prio, fmt.Errorf("line %d: %w", f.line, err)
		}
		prio = p
	}
	if f := n.lookup(wrapForce); f != nil {
		b, ok := f.value.(bool)
		if !ok || f.isMap {
			return nil, prio, fmt.Errorf("line %d: %s must be a bool", f.line, wrapForce)
		}
		if b {
			prio = priority.Force
		}
	}
	inner := n.lookup(wrapValue)
	if inner.prio != nil {
		prio = *inner.prio
	}
	return inner, prio, nil
}

// plain converts a node into its decoded value. Markers are not allowed
// below the level where the value is assigned.
func plain(n *node) (any, error) {
	if !n.isMap {
		return n.value, nil
	}
	m := make(map[string]any, len(n.fields))
	for _, f := range n.fields {
		if f.node.prio != nil || (f.node.isMap && f.node.lookup(wrapValue) != nil) {
			return nil, fmt.Errorf("line %d: priority marker inside a value", f.node.line)
		}
		v, err := plain(f.node)
		if err != nil {
			return nil, err
		}
		m[f.key] = v
	}
	return m, nil
}

// flattener turns a parse tree into validated assignments.
type flattener struct {
	registry *option.Registry
	source   string
	out      []Assignment
}

func (fl *flattener) location(line int) string {
	if line > 0 {
		return fmt.Sprintf("%s:%d", fl.source, line)
	}
	return fl.source
}

func (fl *flattener) emit(opt *option.Option, raw any, prio priority.Priority, line int) error {
	v, err := option.Normalize(opt.Type, raw)
	if err != nil {
		return oerrors.NewOptionError(oerrors.ErrTypeMismatch, opt.Path, fl.location(line), "%v", err)
	}
	fl.out = append(fl.out, Assignment{
		Path:     opt.Path,
		Value:    v,
		Priority: prio,
		Position: len(fl.out),
		Line:     line,
	})
	return nil
}

// walkRoot flattens the top-level mapping, skipping the imports key.
func (fl *flattener) walkRoot(root *node) error {
	if root == nil {
		return nil
	}
	if !root.isMap {
		return oerrors.NewValidationError("module must be a mapping", fl.source, "", "")
	}
	for _, f := range root.fields {
		if f.key == importsKey {
			continue
		}
		if err := fl.walk(f.key, f.node, priority.Default); err != nil {
			return err
		}
	}
	return nil
}

func (fl *flattener) walk(path string, n *node, inherited priority.Priority) error {
	n, prio, err := unwrap(n, inherited)
	if err != nil {
		return oerrors.NewOptionError(oerrors.ErrValidation, path, fl.source, "%v", err)
	}

	if opt, lookupErr := fl.registry.Lookup(path); lookupErr == nil {
		if opt.Type.Kind == option.KindMap && n.isMap {
			return fl.walkMap(opt, n, prio)
		}
		v, err := plain(n)
		if err != nil {
			return oerrors.NewOptionError(oerrors.ErrTypeMismatch, path, fl.location(n.line), "%v", err)
		}
		return fl.emit(opt, v, prio, n.line)
	}

	if n.isMap && fl.registry.IsNamespace(path) {
		for _, f := range n.fields {
			if err := fl.walk(path+"."+f.key, f.node, prio); err != nil {
				return err
			}
		}
		return nil
	}

	if opt, key, ok := fl.registry.MapAncestor(path); ok {
		v, err := plain(n)
		if err != nil {
			return oerrors.NewOptionError(oerrors.ErrTypeMismatch, path, fl.location(n.line), "%v", err)
		}
		return fl.emit(opt, map[string]any{key: v}, prio, n.line)
	}

	return oerrors.NewOptionError(oerrors.ErrUnknownOption, path, fl.location(n.line), "")
}

// walkMap emits one assignment per key so that each key keeps its own marker.
func (fl *flattener) walkMap(opt *option.Option, n *node, prio priority.Priority) error {
	if len(n.fields) == 0 {
		return fl.emit(opt, map[string]any{}, prio, n.line)
	}
	for _, f := range n.fields {
		child, childPrio, err := unwrap(f.node, prio)
		if err != nil {
			return oerrors.NewOptionError(oerrors.ErrValidation, opt.Path+"."+f.key, fl.source, "%v", err)
		}
		v, err := plain(child)
		if err != nil {
			return oerrors.NewOptionError(oerrors.ErrTypeMismatch, opt.Path+"."+f.key, fl.location(child.line), "%v", err)
		}
		if err := fl.emit(opt, map[string]any{f.key: v}, childPrio, child.line); err != nil {
			return err
		}
	}
	return nil
}

// imports extracts the top-level imports list.
func imports(root *node, source string) ([]string, error) {
	if root == nil || !root.isMap {
		return nil, nil
	}
	n := root.lookup(importsKey)
	if n == nil {
		return nil, nil
	}
	list, ok := n.value.([]any)
	if !ok || n.isMap {
		return nil, oerrors.NewValidationError("imports must be a list of paths", fmt.Sprintf("%s:%d", source, n.line), importsKey, "")
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, oerrors.NewValidationError("imports must be a list of paths", fmt.Sprintf("%s:%d", source, n.line), importsKey, "")
		}
		out = append(out, s)
	}
	return out, nil
}
