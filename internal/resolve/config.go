// Package resolve merges modules into one resolved configuration.
package resolve

import (
	"sort"
	"strings"

	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/pkg/priority"
)

// Definition is one module's contribution to an option.
type Definition struct {
	Module   string
	Value    any
	Priority priority.Priority
	Line     int
}

// Value is the resolved value of one option with its provenance.
type Value struct {
	Path  string
	Type  option.Type
	Value any

	// Priority is the highest priority among the winning definitions.
	Priority priority.Priority

	// Winners are the definitions that make up the value.
	Winners []Definition

	// Shadowed are definitions overridden by higher-priority ones.
	Shadowed []Definition

	// FromDefault is set when no module assigned the option.
	FromDefault bool
}

// Configuration is an immutable resolved configuration.
type Configuration struct {
	values map[string]*Value
	paths  []string
}

func newConfiguration(values map[string]*Value) *Configuration {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return &Configuration{values: values, paths: paths}
}

// Paths returns every option path in sorted order.
func (c *Configuration) Paths() []string {
	return append([]string(nil), c.paths...)
}

// Lookup returns the resolved value and provenance for path.
func (c *Configuration) Lookup(path string) (*Value, bool) {
	v, ok := c.values[path]
	return v, ok
}

// Get returns the normalized value at path.
func (c *Configuration) Get(path string) (any, bool) {
	v, ok := c.values[path]
	if !ok {
		return nil, false
	}
	return v.Value, true
}

// String returns a string-like value at path, or "" when absent or not a string.
func (c *Configuration) String(path string) string {
	v, _ := c.Get(path)
	s, _ := v.(string)
	return s
}

// Map returns a mapping value at path, or nil.
func (c *Configuration) Map(path string) map[string]any {
	v, _ := c.Get(path)
	m, _ := v.(map[string]any)
	return m
}

// Values returns the resolved values in path order.
func (c *Configuration) Values() []*Value {
	out := make([]*Value, 0, len(c.paths))
	for _, p := range c.paths {
		out = append(out, c.values[p])
	}
	return out
}

// Tree returns the configuration as nested mappings keyed by path segment.
func (c *Configuration) Tree() map[string]any {
	root := make(map[string]any)
	for _, p := range c.paths {
		segs := strings.Split(p, ".")
		m := root
		for _, seg := range segs[:len(segs)-1] {
			next, ok := m[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[seg] = next
			}
			m = next
		}
		m[segs[len(segs)-1]] = c.values[p].Value
	}
	return root
}
