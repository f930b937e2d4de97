package module

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/opmodel/strata/pkg/priority"
)

// forceTag marks a YAML value as a force assignment: "target: !force beta".
const forceTag = "!force"

func parseYAML(data []byte) (*node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	return convertYAML(doc.Content[0])
}

func convertYAML(y *yaml.Node) (*node, error) {
	if y.Kind == yaml.AliasNode && y.Alias != nil {
		y = y.Alias
	}

	n := &node{line: y.Line}
	if y.Tag == forceTag {
		p := priority.Force
		n.prio = &p
	}

	if y.Kind == yaml.MappingNode {
		n.isMap = true
		for i := 0; i+1 < len(y.Content); i += 2 {
			k := y.Content[i]
			if k.Kind != yaml.ScalarNode || k.Tag == "!!merge" {
				return nil, fmt.Errorf("line %d: mapping keys must be plain strings", k.Line)
			}
			child, err := convertYAML(y.Content[i+1])
			if err != nil {
				return nil, err
			}
			n.fields = append(n.fields, field{key: k.Value, node: child})
		}
		return n, nil
	}

	target := y
	if y.Tag == forceTag {
		untagged := *y
		untagged.Tag = ""
		target = &untagged
	}
	var v any
	if err := target.Decode(&v); err != nil {
		return nil, fmt.Errorf("line %d: %w", y.Line, err)
	}
	n.value = v
	return n, nil
}
