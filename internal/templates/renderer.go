package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
)

//go:embed files
var templateFS embed.FS

// Renderer handles template rendering with data substitution.
type Renderer struct {
	data TemplateData
}

// NewRenderer creates a new renderer with the given template data.
func NewRenderer(data TemplateData) *Renderer {
	return &Renderer{data: data}
}

// RenderFile renders a single template file and returns the content.
func (r *Renderer) RenderFile(content []byte) ([]byte, error) {
	tmpl, err := template.New("file").Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r.data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	return buf.Bytes(), nil
}

// TemplateFile represents a file to be generated from a template.
type TemplateFile struct {
	// SourcePath is the path within the embedded filesystem.
	SourcePath string

	// TargetPath is the output path (with .tmpl suffix removed).
	TargetPath string

	// Content is the rendered content.
	Content []byte
}

// RenderTemplate renders all files from a template, in path order.
func (r *Renderer) RenderTemplate(templateName string) ([]TemplateFile, error) {
	var files []TemplateFile

	err := walkTemplate(templateName, func(source, target string) error {
		content, err := fs.ReadFile(templateFS, source)
		if err != nil {
			return fmt.Errorf("reading %s: %w", source, err)
		}
		rendered, err := r.RenderFile(content)
		if err != nil {
			return fmt.Errorf("rendering %s: %w", source, err)
		}
		files = append(files, TemplateFile{SourcePath: source, TargetPath: target, Content: rendered})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking template %s: %w", templateName, err)
	}

	return files, nil
}

// ListTemplateFiles returns the target paths of a template without rendering.
func ListTemplateFiles(templateName string) ([]string, error) {
	var files []string
	err := walkTemplate(templateName, func(_, target string) error {
		files = append(files, target)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing template %s: %w", templateName, err)
	}
	return files, nil
}

// walkTemplate calls fn for every .tmpl file of a template with its
// embedded path and its target path.
func walkTemplate(templateName string, fn func(source, target string) error) error {
	root := path.Join("files", templateName)
	return fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".tmpl") {
			return nil
		}
		target := strings.TrimSuffix(strings.TrimPrefix(p, root+"/"), ".tmpl")
		return fn(p, target)
	})
}
