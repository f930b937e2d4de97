// Package module parses configuration fragments into immutable Modules.
//
// A module file is a tree of key/value declarations. Nested mappings and
// dotted keys are equivalent: "session: {target: x}" and "session.target: x"
// assign the same option. Each assignment carries a priority, which is the
// default level unless a marker says otherwise.
package module

import (
	"github.com/opmodel/strata/pkg/priority"
)

// Assignment is one (path, value, priority) tuple contributed by a module.
type Assignment struct {
	// Path is the registered option path.
	Path string

	// Value is normalized for the option type. Assignments to a map option
	// carry a mapping with the keys contributed at this priority.
	Value any

	Priority priority.Priority

	// Position is the assignment's ordinal inside its module.
	Position int

	// Line is the 1-based source line, 0 when unknown.
	Line int
}

// Module is an immutable set of assignments from one source file.
type Module struct {
	// Name is the source file path.
	Name string

	// Imports lists further module files referenced by this one, as
	// absolute paths, in declaration order.
	Imports []string

	Assignments []Assignment
}

// Paths returns the distinct option paths the module assigns, in first-seen order.
func (m *Module) Paths() []string {
	seen := make(map[string]bool, len(m.Assignments))
	var out []string
	for _, a := range m.Assignments {
		if !seen[a.Path] {
			seen[a.Path] = true
			out = append(out, a.Path)
		}
	}
	return out
}
