// Package option declares the typed schema of configuration keys.
//
// An option is addressed by a dotted path and carries a Type and a
// MergeStrategy. Values flowing through the rest of the system are kept in
// normalized form (see Normalize) so that equality is plain deep equality.
package option

import (
	"fmt"
	"strings"
)

// Scalar is an element type.
type Scalar string

const (
	String Scalar = "string"
	Int    Scalar = "int"
	Bool   Scalar = "bool"
	Float  Scalar = "float"
	Path   Scalar = "path"

	// Recipe values name a recipe in the recipe store.
	Recipe Scalar = "recipe"
)

func (s Scalar) valid() bool {
	switch s {
	case String, Int, Bool, Float, Path, Recipe:
		return true
	}
	return false
}

// Kind is the shape of an option value.
type Kind int

const (
	KindScalar Kind = iota
	// KindList is an ordered list replaced as a whole on override.
	KindList
	KindSet
	KindMap
)

// Type is a declared option type.
type Type struct {
	Kind Kind
	Elem Scalar
}

// ScalarType returns the scalar type s.
func ScalarType(s Scalar) Type { return Type{Kind: KindScalar, Elem: s} }

// ListOf returns list<s>.
func ListOf(s Scalar) Type { return Type{Kind: KindList, Elem: s} }

// SetOf returns set<s>.
func SetOf(s Scalar) Type { return Type{Kind: KindSet, Elem: s} }

// MapOf returns map<s>.
func MapOf(s Scalar) Type { return Type{Kind: KindMap, Elem: s} }

// String renders the type in schema syntax.
func (t Type) String() string {
	switch t.Kind {
	case KindList:
		return "list<" + string(t.Elem) + ">"
	case KindSet:
		return "set<" + string(t.Elem) + ">"
	case KindMap:
		return "map<" + string(t.Elem) + ">"
	default:
		return string(t.Elem)
	}
}

// IsCollection reports whether values of this type accumulate across priorities.
func (t Type) IsCollection() bool {
	return t.Kind == KindSet || t.Kind == KindMap
}

// ParseType parses "string", "list<int>", "set<string>", "map<recipe>" and so on.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	for _, c := range []struct {
		prefix string
		kind   Kind
	}{{"list<", KindList}, {"set<", KindSet}, {"map<", KindMap}} {
		if rest, ok := strings.CutPrefix(s, c.prefix); ok {
			elem, ok := strings.CutSuffix(rest, ">")
			if !ok || !Scalar(elem).valid() {
				return Type{}, fmt.Errorf("invalid type %q", s)
			}
			return Type{Kind: c.kind, Elem: Scalar(elem)}, nil
		}
	}
	if !Scalar(s).valid() {
		return Type{}, fmt.Errorf("invalid type %q", s)
	}
	return ScalarType(Scalar(s)), nil
}

// MergeStrategy names how assignments from several modules combine.
type MergeStrategy string

const (
	// Override keeps the single highest-priority value.
	Override MergeStrategy = "override"

	// Union accumulates set members from every priority level.
	Union MergeStrategy = "union"

	// Merge unions mapping keys, each key taking its highest-priority value.
	Merge MergeStrategy = "merge"
)

// DefaultStrategy returns the only strategy compatible with t.
func (t Type) DefaultStrategy() MergeStrategy {
	switch t.Kind {
	case KindSet:
		return Union
	case KindMap:
		return Merge
	default:
		return Override
	}
}

// Option is one registered configuration key. Immutable once registered.
type Option struct {
	Path        string
	Type        Type
	Strategy    MergeStrategy
	Default     any
	HasDefault  bool
	Description string
}
