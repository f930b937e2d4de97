package resolve

import (
	"fmt"
	"strings"

	"github.com/opmodel/strata/internal/output"
)

// Explain renders the provenance of every value: the winning definitions,
// followed by the ones they shadowed.
func Explain(c *Configuration) string {
	var b strings.Builder
	for _, v := range c.Values() {
		b.WriteString(output.StyleNoun.Render(v.Path))
		b.WriteString(" = ")
		fmt.Fprintf(&b, "%v", v.Value)
		b.WriteString("\n")

		if v.FromDefault {
			b.WriteString(output.StyleDim.Render("  default"))
			b.WriteString("\n")
			continue
		}
		for _, d := range v.Winners {
			fmt.Fprintf(&b, "  %s %s %v\n", output.StyleDim.Render("from"), describeDefinition(d), d.Value)
		}
		for _, d := range v.Shadowed {
			fmt.Fprintf(&b, "  %s %s %v\n", output.StyleDim.Render("shadowed"), describeDefinition(d), d.Value)
		}
	}
	return b.String()
}

func describeDefinition(d Definition) string {
	return fmt.Sprintf("%s [priority %s]", location(d), d.Priority)
}
