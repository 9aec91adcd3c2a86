package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t.Kind == 0 {
		return nil, fmt.Errorf("marshal type: missing kind")
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalYAML reads a mapping of field name to type tag, preserving the
// mapping's key order as the field order.
//
//	schema:
//	  x: number
//	  y: number
//	  parent: record?
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema must be a mapping of field to type", node.Line)
	}

	fields := make([]Field, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: type of %q must be a string", val.Line, key.Value)
		}
		t, err := ParseType(val.Value)
		if err != nil {
			return fmt.Errorf("line %d: field %q: %w", val.Line, key.Value, err)
		}
		fields = append(fields, Field{Name: key.Value, Type: t})
	}

	parsed, err := New(fields...)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}

// MarshalYAML writes the schema as an ordered mapping.
func (s Schema) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range s.fields {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Type.String()},
		)
	}
	return node, nil
}
