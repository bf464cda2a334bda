// Package locator turns a declarative map of element locators into a tree
// of chainable element handles.
package locator

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Node is one entry of a locator document: either a leaf carrying a
// locator string or a group of named children in document order.
type Node struct {
	Name     string
	Locator  string
	Children []*Node
}

// IsLeaf reports whether n carries a locator.
func (n *Node) IsLeaf() bool {
	return n.Children == nil
}

// documentSchema constrains locator documents: every object has at least
// one property and every leaf is a non-empty string.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$ref": "#/$defs/group",
  "$defs": {
    "group": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "oneOf": [
          {"type": "string", "minLength": 1},
          {"$ref": "#/$defs/group"}
        ]
      }
    }
  }
}`

// LoadFile reads and parses a locator document (YAML or JSON).
func LoadFile(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locator map: %w", err)
	}
	return Parse(data)
}

// Parse validates a YAML or JSON document and builds its node tree,
// preserving key order.
func Parse(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse locator map: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("locator map is empty")
	}

	var generic any
	if err := doc.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode locator map: %w", err)
	}
	if err := validate(generic); err != nil {
		return nil, err
	}

	root := &Node{}
	if err := fromYAML(root, doc.Content[0]); err != nil {
		return nil, err
	}
	return root, nil
}

// validate checks a decoded document against documentSchema. The document
// is round-tripped through JSON so the validator only sees JSON types.
func validate(generic any) error {
	data, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("locator map: %w", err)
	}
	doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return fmt.Errorf("locator map: %w", err)
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
	if err != nil {
		return fmt.Errorf("locator schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("locator-map.json", schemaDoc); err != nil {
		return fmt.Errorf("add locator schema: %w", err)
	}
	sch, err := c.Compile("locator-map.json")
	if err != nil {
		return fmt.Errorf("compile locator schema: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("invalid locator map: %w", err)
	}
	return nil
}

func fromYAML(parent *Node, n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	parent.Children = []*Node{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		child := &Node{Name: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			child.Locator = val.Value
		case yaml.MappingNode:
			if err := fromYAML(child, val); err != nil {
				return fmt.Errorf("%s: %w", key.Value, err)
			}
		default:
			return fmt.Errorf("line %d: %q must be a locator string or a mapping", val.Line, key.Value)
		}
		parent.Children = append(parent.Children, child)
	}
	return nil
}

// FromMap builds a node tree from an in-memory mapping. Keys are sorted
// since map order is undefined.
func FromMap(m map[string]any) (*Node, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	root := &Node{}
	if err := fromMap(root, m); err != nil {
		return nil, err
	}
	return root, nil
}

func fromMap(parent *Node, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parent.Children = []*Node{}
	for _, k := range keys {
		child := &Node{Name: k}
		switch v := m[k].(type) {
		case string:
			child.Locator = v
		case map[string]any:
			if err := fromMap(child, v); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		default:
			return fmt.Errorf("%s: unsupported value type %T", k, v)
		}
		parent.Children = append(parent.Children, child)
	}
	return nil
}
