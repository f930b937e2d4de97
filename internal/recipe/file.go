package recipe

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	oerrors "github.com/opmodel/strata/internal/errors"
)

// fileFormat is the on-disk recipe file:
//
//	recipes:
//	  - name: theme
//	    source: {path: ./theme}
//	    steps: ["cp -r \"$src\"/. \"$out\""]
//	    deps: [fonts]
//	    outputHash: sha256-...
type fileFormat struct {
	Recipes []fileRecipe `json:"recipes"`
}

type fileRecipe struct {
	Name       string   `json:"name"`
	Source     Source   `json:"source"`
	Steps      []string `json:"steps"`
	Deps       []string `json:"deps"`
	OutputHash string   `json:"outputHash"`
}

// ParseFile decodes recipe file content. Relative source paths resolve
// against baseDir.
func ParseFile(data []byte, name, baseDir string) ([]*Recipe, error) {
	var f fileFormat
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, oerrors.NewValidationError(err.Error(), name, "", "recipe files hold a top-level recipes list")
	}

	out := make([]*Recipe, 0, len(f.Recipes))
	for _, fr := range f.Recipes {
		src := fr.Source
		if src.Path != "" && !filepath.IsAbs(src.Path) {
			src.Path = filepath.Join(baseDir, src.Path)
		}
		r := &Recipe{
			Name:       fr.Name,
			Source:     src,
			Steps:      fr.Steps,
			Deps:       fr.Deps,
			OutputHash: fr.OutputHash,
			File:       name,
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadFile reads a recipe file and adds its recipes to the store.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return oerrors.NewNotFoundError("recipe file not found", path, "")
		}
		return fmt.Errorf("reading recipes %s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	recipes, err := ParseFile(data, path, abs)
	if err != nil {
		return err
	}
	for _, r := range recipes {
		if err := s.Add(r); err != nil {
			return err
		}
	}
	return nil
}
