package templates

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opmodel/strata/internal/output"
)

// Generator handles project generation from templates.
type Generator struct {
	opts GenerateOptions
}

// NewGenerator creates a new generator with the given options.
func NewGenerator(opts GenerateOptions) *Generator {
	if opts.TemplateName == "" {
		opts.TemplateName = DefaultTemplateName
	}
	return &Generator{opts: opts}
}

// Generate creates a new project from a template.
func (g *Generator) Generate() (*GenerateResult, error) {
	tmpl, err := Get(g.opts.TemplateName)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(g.opts.TargetDir)
	if err != nil {
		return nil, fmt.Errorf("resolving target directory: %w", err)
	}
	name := g.opts.ProjectName
	if name == "" {
		name = filepath.Base(abs)
	}
	if err := ValidateProjectName(name); err != nil {
		return nil, err
	}

	if err := g.checkTargetDir(); err != nil {
		return nil, err
	}

	data := TemplateData{ProjectName: name, Hostname: Hostname(name)}

	output.Debug("generating project",
		"template", tmpl.Name,
		"name", name,
		"target", g.opts.TargetDir)

	files, err := NewRenderer(data).RenderTemplate(tmpl.Name)
	if err != nil {
		return nil, fmt.Errorf("rendering template: %w", err)
	}

	createdFiles := make([]string, 0, len(files))
	for _, f := range files {
		targetPath := filepath.Join(g.opts.TargetDir, filepath.FromSlash(f.TargetPath))

		parentDir := filepath.Dir(targetPath)
		if err := os.MkdirAll(parentDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", parentDir, err)
		}

		if !g.opts.Force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil, fmt.Errorf("file %s already exists; use --force to overwrite", targetPath)
			}
		}

		if err := os.WriteFile(targetPath, f.Content, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", targetPath, err)
		}

		output.Debug("created file", "path", f.TargetPath)
		createdFiles = append(createdFiles, f.TargetPath)
	}

	return &GenerateResult{
		Files:     createdFiles,
		Template:  tmpl,
		TargetDir: g.opts.TargetDir,
	}, nil
}

// checkTargetDir validates the target directory.
func (g *Generator) checkTargetDir() error {
	info, err := os.Stat(g.opts.TargetDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking target directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", g.opts.TargetDir)
	}

	entries, err := os.ReadDir(g.opts.TargetDir)
	if err != nil {
		return fmt.Errorf("reading target directory: %w", err)
	}

	if len(entries) > 0 && !g.opts.Force {
		return fmt.Errorf("directory %s is not empty; use --force to overwrite existing files", g.opts.TargetDir)
	}

	return nil
}
