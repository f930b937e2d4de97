// Package templates provides the project templates of strata init.
package templates

// Template represents a project template with its metadata.
type Template struct {
	// Name is the template identifier (minimal, layered).
	Name string

	// Description explains the template's purpose and use case.
	Description string

	// Default indicates if this is the default template when --template is omitted.
	Default bool

	// Modules, Schemas and Recipes name the generated files by role, relative
	// to the target directory.
	Modules []string
	Schemas []string
	Recipes []string
}

// TemplateData holds the data passed to template rendering.
type TemplateData struct {
	// ProjectName is the name of the project (from --name or directory name).
	ProjectName string

	// Hostname is the system.hostname of the generated configuration.
	Hostname string
}

// GenerateOptions configures project generation behavior.
type GenerateOptions struct {
	// TargetDir is the directory to generate the project in.
	TargetDir string

	// TemplateName is the template to use.
	TemplateName string

	// ProjectName overrides the directory name.
	ProjectName string

	// Force allows overwriting files in non-empty directories.
	Force bool
}

// GenerateResult contains the result of project generation.
type GenerateResult struct {
	// Files is the list of files created.
	Files []string

	// Template is the template that was used.
	Template Template

	// TargetDir is the directory where files were created.
	TargetDir string
}
