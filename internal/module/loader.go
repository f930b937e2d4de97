package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/internal/output"
)

// Format is a module file syntax.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatCUE   Format = "cue"
)

// FormatFromPath picks the format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonc":
		return FormatJSONC, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", oerrors.NewValidationError(
		fmt.Sprintf("unsupported module file extension %q", filepath.Ext(path)),
		path, "", "use .yaml, .yml, .json, .jsonc or .cue")
}

// Loader parses module files against an option registry.
type Loader struct {
	registry *option.Registry
}

// NewLoader creates a loader validating against r.
func NewLoader(r *option.Registry) *Loader {
	return &Loader{registry: r}
}

// Load parses one module file. Imports are recorded but not followed.
func (l *Loader) Load(path string) (*Module, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oerrors.NewNotFoundError("module file not found", path, "")
		}
		return nil, fmt.Errorf("reading module %s: %w", path, err)
	}

	mod, err := l.LoadBytes(path, format, data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for i, imp := range mod.Imports {
		if !filepath.IsAbs(imp) {
			imp = filepath.Join(dir, imp)
		}
		abs, err := filepath.Abs(imp)
		if err != nil {
			return nil, fmt.Errorf("resolving import %s: %w", imp, err)
		}
		mod.Imports[i] = abs
	}
	return mod, nil
}

// LoadBytes parses module content. name identifies the module in errors
// and provenance.
func (l *Loader) LoadBytes(name string, format Format, data []byte) (*Module, error) {
	var (
		root *node
		err  error
	)
	switch format {
	case FormatYAML:
		root, err = parseYAML(data)
	case FormatJSON, FormatJSONC:
		root, err = parseJSON(data)
	case FormatCUE:
		root, err = parseCUE(data, name)
	default:
		return nil, fmt.Errorf("unknown module format %q", format)
	}
	if err != nil {
		return nil, oerrors.NewValidationError(err.Error(), name, "", "")
	}

	imps, err := imports(root, name)
	if err != nil {
		return nil, err
	}

	fl := &flattener{registry: l.registry, source: name}
	if err := fl.walkRoot(root); err != nil {
		return nil, err
	}

	output.Debug("loaded module", "name", name, "format", format, "assignments", len(fl.out))
	return &Module{Name: name, Imports: imps, Assignments: fl.out}, nil
}

// LoadAll loads every path and, depth-first, every module they import.
// Each file is loaded once; a module comes after the modules it imports,
// and repeated or cyclic imports are skipped after the first visit.
func (l *Loader) LoadAll(paths []string) ([]*Module, error) {
	var (
		mods    []*Module
		visited = make(map[string]bool)
	)

	var visit func(path string) error
	visit = func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving module path %s: %w", path, err)
		}
		if visited[abs] {
			return nil
		}
		visited[abs] = true

		mod, err := l.Load(path)
		if err != nil {
			return err
		}
		for _, imp := range mod.Imports {
			if err := visit(imp); err != nil {
				return fmt.Errorf("imported by %s: %w", path, err)
			}
		}
		mods = append(mods, mod)
		return nil
	}

	for _, p := range paths {
		if err := visit(p); err != nil {
			return nil, err
		}
	}
	return mods, nil
}
