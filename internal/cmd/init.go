package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/templates"
)

// NewInitCmd creates the init command.
func NewInitCmd(_ *cmdtypes.GlobalConfig) *cobra.Command {
	var (
		templateFlag string
		nameFlag     string
		forceFlag    bool
	)

	c := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a new strata project",
		Long: `Create a new strata project from a template.

Templates:
  minimal  One module and one recipe
  layered  Base and host modules, a schema file and an aggregate output (default)

Arguments:
  dir    Target directory (default: current directory)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(c, dir, templateFlag, nameFlag, forceFlag)
		},
	}

	c.Flags().StringVarP(&templateFlag, "template", "t", templates.DefaultTemplateName,
		"Project template: "+strings.Join(templates.Names(), ", "))
	c.Flags().StringVar(&nameFlag, "name", "", "Project name (default: directory name)")
	c.Flags().BoolVarP(&forceFlag, "force", "f", false, "Overwrite existing files")
	return c
}

func runInit(c *cobra.Command, dir, templateName, name string, force bool) error {
	res, err := templates.NewGenerator(templates.GenerateOptions{
		TargetDir:    dir,
		TemplateName: templateName,
		ProjectName:  name,
		Force:        force,
	}).Generate()
	if err != nil {
		return &cmdtypes.ExitError{Code: cmdtypes.ExitGeneralError, Err: err}
	}

	for _, f := range res.Files {
		output.Debug("created", "file", filepath.Join(dir, f))
	}
	fmt.Fprintln(c.OutOrStdout(), output.FormatCheckmark(fmt.Sprintf("Project created in %s (%s template)", dir, res.Template.Name)))
	fmt.Fprintln(c.OutOrStdout(), "Plan it with:")
	fmt.Fprintf(c.OutOrStdout(), "  %s\n", planHint(dir, res.Template))
	return nil
}

// planHint is the plan command for a generated project.
func planHint(dir string, t templates.Template) string {
	args := []string{"strata", "plan"}
	for _, m := range t.Modules {
		args = append(args, "-m", filepath.Join(dir, m))
	}
	for _, s := range t.Schemas {
		args = append(args, "--schema", filepath.Join(dir, s))
	}
	for _, r := range t.Recipes {
		args = append(args, "-r", filepath.Join(dir, r))
	}
	return strings.Join(args, " ")
}
