package ir

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// FromYAMLNode converts a parsed YAML node into an IRValue, preserving
// mapping key order. Aliases are resolved; merge keys are not supported.
func FromYAMLNode(node *yaml.Node, maxDepth int) (IRValue, error) {
	return fromYAML(node, 0, maxDepth)
}

// UnmarshalYAMLValue parses a YAML document into an IRValue.
func UnmarshalYAMLValue(data []byte, maxDepth int) (IRValue, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return FromYAMLNode(&doc, maxDepth)
}

func fromYAML(node *yaml.Node, depth, maxDepth int) (IRValue, error) {
	if node == nil {
		return IRNull{}, nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return IRNull{}, nil
		}
		return fromYAML(node.Content[0], depth, maxDepth)

	case yaml.AliasNode:
		return fromYAML(node.Alias, depth, maxDepth)

	case yaml.MappingNode:
		if depth >= maxDepth {
			return nil, fmt.Errorf("line %d: %w (%d)", node.Line, ErrTooDeep, maxDepth)
		}
		b := newObjectBuilder(len(node.Content) / 2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			val, err := fromYAML(valNode, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			b.set(keyNode.Value, val)
		}
		return b.obj, nil

	case yaml.SequenceNode:
		if depth >= maxDepth {
			return nil, fmt.Errorf("line %d: %w (%d)", node.Line, ErrTooDeep, maxDepth)
		}
		arr := make(IRArray, 0, len(node.Content))
		for _, child := range node.Content {
			val, err := fromYAML(child, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil

	case yaml.ScalarNode:
		return yamlScalar(node)

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
	}
}

func yamlScalar(node *yaml.Node) (IRValue, error) {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	switch v := raw.(type) {
	case nil:
		return IRNull{}, nil
	case string:
		return IRString(v), nil
	case bool:
		return IRBool(v), nil
	case int:
		return IRInt(v), nil
	case int64:
		return IRInt(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return IRFloat(float64(v)), nil
		}
		return IRInt(int64(v)), nil
	case float64:
		return IRFloat(v), nil
	default:
		// timestamps and binary scalars keep their source text
		return IRString(node.Value), nil
	}
}
