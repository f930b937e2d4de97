package templates

import (
	"fmt"
	"strings"
)

// DefaultTemplateName is the template used when --template is not specified.
const DefaultTemplateName = "layered"

// templates is the internal registry of available templates.
var templates = map[string]Template{
	"minimal": {
		Name:        "minimal",
		Description: "One module and one recipe - learning strata",
		Modules:     []string{"strata.yaml"},
		Recipes:     []string{"recipes.yaml"},
	},
	"layered": {
		Name:        "layered",
		Description: "Base and host modules, a schema file and an aggregate output",
		Default:     true,
		Modules:     []string{"base.yaml", "host.yaml"},
		Schemas:     []string{"options.yaml"},
		Recipes:     []string{"recipes.yaml"},
	},
}

// Get returns a template by name.
func Get(name string) (Template, error) {
	t, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown template %q; valid templates: %s", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

// List returns all available templates.
func List() []Template {
	return []Template{templates["minimal"], templates["layered"]}
}

// GetDefault returns the default template.
func GetDefault() Template {
	return templates[DefaultTemplateName]
}

// Names returns all template names.
func Names() []string {
	return []string{"minimal", "layered"}
}
