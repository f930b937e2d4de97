package option

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	oerrors "github.com/opmodel/strata/internal/errors"
)

//go:embed schema/builtin.yaml
var builtinSchema []byte

// schemaFile is the on-disk schema format.
type schemaFile struct {
	Options map[string]schemaEntry `yaml:"options"`
}

type schemaEntry struct {
	Type        string `yaml:"type"`
	Strategy    string `yaml:"strategy"`
	Default     any    `yaml:"default"`
	Description string `yaml:"description"`

	hasDefault bool
}

// UnmarshalYAML records whether a default key is present, so that an
// explicit null default is distinguishable from none.
func (e *schemaEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain schemaEntry
	if err := node.Decode((*plain)(e)); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "default" {
			e.hasDefault = true
		}
	}
	return nil
}

// Builtin returns a registry holding the built-in schema. The registry is
// not sealed so that user schema files can extend it.
func Builtin() (*Registry, error) {
	r := NewRegistry()
	if err := r.RegisterSchema(builtinSchema, "builtin.yaml"); err != nil {
		return nil, fmt.Errorf("loading built-in schema: %w", err)
	}
	return r, nil
}

// LoadSchemaFile registers every option declared in a YAML schema file.
func (r *Registry) LoadSchemaFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return oerrors.NewNotFoundError("schema file not found", path, "")
		}
		return fmt.Errorf("reading schema %s: %w", path, err)
	}
	return r.RegisterSchema(data, path)
}

// RegisterSchema registers the options of a YAML schema document, in path
// order.
func (r *Registry) RegisterSchema(data []byte, source string) error {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return oerrors.NewValidationError(err.Error(), source, "", "schema files are YAML with a top-level options mapping")
	}

	paths := make([]string, 0, len(f.Options))
	for p := range f.Options {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		e := f.Options[p]
		typ, err := ParseType(e.Type)
		if err != nil {
			return oerrors.NewOptionError(oerrors.ErrValidation, p, source, "%v", err)
		}
		settings := []Setting{WithDescription(e.Description)}
		if e.hasDefault {
			settings = append(settings, WithDefault(e.Default))
		}
		if err := r.Register(p, typ, MergeStrategy(e.Strategy), settings...); err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
	}
	return nil
}
