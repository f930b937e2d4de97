package module

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/opmodel/strata/pkg/priority"
)

// parseCUE evaluates a CUE module file. Priority markers are field
// attributes:
//
//	session: target: "beta" @force()
//	users: groups: ["video"] @priority(150)
func parseCUE(data []byte, filename string) (*node, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	return convertCUE(v)
}

func convertCUE(v cue.Value) (*node, error) {
	n := &node{line: v.Pos().Line()}

	prio, err := cuePriority(v)
	if err != nil {
		return nil, err
	}
	n.prio = prio

	switch v.Kind() {
	case cue.StructKind:
		n.isMap = true
		it, err := v.Fields()
		if err != nil {
			return nil, err
		}
		for it.Next() {
			child, err := convertCUE(it.Value())
			if err != nil {
				return nil, err
			}
			n.fields = append(n.fields, field{key: it.Selector().Unquoted(), node: child})
		}
	default:
		val, err := cuePlain(v)
		if err != nil {
			return nil, err
		}
		n.value = val
	}
	return n, nil
}

func cuePriority(v cue.Value) (*priority.Priority, error) {
	if a := v.Attribute("force"); a.Err() == nil {
		p := priority.Force
		return &p, nil
	}
	a := v.Attribute("priority")
	if a.Err() != nil {
		return nil, nil
	}
	arg, err := a.String(0)
	if err != nil {
		return nil, fmt.Errorf("line %d: @priority needs an argument: %w", v.Pos().Line(), err)
	}
	p, err := priority.Parse(arg)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", v.Pos().Line(), err)
	}
	return &p, nil
}

func cuePlain(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return nil, err
		}
		items := []any{}
		for it.Next() {
			item, err := cuePlain(it.Value())
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case cue.StructKind:
		m := map[string]any{}
		it, err := v.Fields()
		if err != nil {
			return nil, err
		}
		for it.Next() {
			item, err := cuePlain(it.Value())
			if err != nil {
				return nil, err
			}
			m[it.Selector().Unquoted()] = item
		}
		return m, nil
	}
	return nil, fmt.Errorf("line %d: unsupported CUE value of kind %s", v.Pos().Line(), v.Kind())
}
