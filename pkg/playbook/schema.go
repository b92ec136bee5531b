// Package playbook loads and validates the declarative input document.
//
// A Schema is a tree of Params, each tagged with a Type. Validation walks the
// YAML node tree rather than a decoded map so that every error can name the
// line it came from. On success the validated, coerced and defaulted tree
// replaces the raw input.
package playbook

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtcc/pkg/util"
)

// Type is the type tag of a schema leaf.
type Type string

const (
	TypeStr  Type = "str"
	TypeInt  Type = "int"
	TypeBool Type = "bool"
	TypeList Type = "list"
	TypeDict Type = "dict"
)

// Param describes one key of a mapping.
type Param struct {
	Type     Type
	Elements Type   // element type for lists
	Options  Schema // keys of a dict, or of each dict element of a list
	Required bool
	Default  any
	Choices  []string
	Aliases  []string
	Upper    bool // fold string values to upper case before checking Choices
	NoLog    bool
}

// Schema maps canonical key names to their Params.
type Schema map[string]*Param

type validator struct {
	v *util.ValidationBuilder
}

// Validate checks node, which must be a mapping, against schema and returns
// the normalized mapping. Unknown keys, type mismatches, bad choices and
// missing required keys are all reported together.
func Validate(node *yaml.Node, schema Schema) (map[string]any, error) {
	val := &validator{v: &util.ValidationBuilder{}}
	node = unwrapDocument(node)
	out := val.mapping(node, schema, "")
	if err := val.v.Build(); err != nil {
		return nil, err
	}
	return out, nil
}

func unwrapDocument(node *yaml.Node) *yaml.Node {
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return node.Content[0]
	}
	return node
}

func (val *validator) errorf(node *yaml.Node, path, format string, args ...any) {
	line := 0
	if node != nil {
		line = node.Line
	}
	val.v.AddErrorf("line %d: %s: %s", line, displayPath(path), fmt.Sprintf(format, args...))
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// aliasIndex maps every accepted spelling to its canonical key.
func (s Schema) aliasIndex() map[string]string {
	idx := make(map[string]string, len(s))
	for name, p := range s {
		idx[name] = name
		for _, a := range p.Aliases {
			idx[a] = name
		}
	}
	return idx
}

func (val *validator) mapping(node *yaml.Node, schema Schema, path string) map[string]any {
	out := make(map[string]any)
	node = resolveAlias(node)
	if node == nil || isNull(node) {
		node = &yaml.Node{Kind: yaml.MappingNode}
	}
	if node.Kind != yaml.MappingNode {
		val.errorf(node, path, "expected a mapping, got %s", kindName(node))
		return out
	}

	idx := schema.aliasIndex()
	seen := make(map[string]*yaml.Node)
	nulls := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		canonical, ok := idx[key]
		if !ok {
			val.errorf(keyNode, join(path, key), "unsupported parameter (supported: %s)", strings.Join(schema.keys(), ", "))
			continue
		}
		if prev, dup := seen[canonical]; dup {
			val.errorf(keyNode, join(path, key), "duplicates %s given on line %d", canonical, prev.Line)
			continue
		}
		seen[canonical] = keyNode
		if isNull(valueNode) {
			nulls[canonical] = true
			continue
		}
		if v, ok := val.value(valueNode, schema[canonical], join(path, canonical)); ok {
			out[canonical] = v
		}
	}

	for _, name := range schema.keys() {
		p := schema[name]
		if _, present := out[name]; present {
			continue
		}
		_, given := seen[name]
		switch {
		case p.Required && (!given || nulls[name]):
			val.errorf(node, join(path, name), "missing required parameter")
		case p.Default != nil:
			out[name] = p.Default
		}
	}
	return out
}

func (s Schema) keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (val *validator) value(node *yaml.Node, p *Param, path string) (any, bool) {
	node = resolveAlias(node)
	switch p.Type {
	case TypeDict:
		return val.mapping(node, p.Options, path), true
	case TypeList:
		return val.list(node, p, path)
	default:
		return val.scalar(node, p.Type, p, path)
	}
}

func (val *validator) list(node *yaml.Node, p *Param, path string) (any, bool) {
	if node.Kind != yaml.SequenceNode {
		val.errorf(node, path, "expected a list, got %s", kindName(node))
		return nil, false
	}
	out := make([]any, 0, len(node.Content))
	for i, el := range node.Content {
		el = resolveAlias(el)
		elPath := fmt.Sprintf("%s[%d]", path, i)
		switch p.Elements {
		case TypeDict:
			out = append(out, val.mapping(el, p.Options, elPath))
		case "":
			out = append(out, el.Value)
		default:
			if v, ok := val.scalar(el, p.Elements, p, elPath); ok {
				out = append(out, v)
			}
		}
	}
	return out, true
}

func (val *validator) scalar(node *yaml.Node, t Type, p *Param, path string) (any, bool) {
	if node.Kind != yaml.ScalarNode {
		val.errorf(node, path, "expected %s, got %s", t, kindName(node))
		return nil, false
	}
	switch t {
	case TypeStr:
		s := node.Value
		if p.Upper {
			s = strings.ToUpper(s)
		}
		if len(p.Choices) > 0 && !contains(p.Choices, s) {
			val.errorf(node, path, "value %q is not one of: %s", node.Value, strings.Join(p.Choices, ", "))
			return nil, false
		}
		return s, true
	case TypeInt:
		n, err := strconv.ParseInt(strings.TrimSpace(node.Value), 10, 64)
		if err != nil {
			val.errorf(node, path, "expected int, got %q", node.Value)
			return nil, false
		}
		return int(n), true
	case TypeBool:
		b, ok := parseBool(node.Value)
		if !ok {
			val.errorf(node, path, "expected bool, got %q", node.Value)
			return nil, false
		}
		return b, true
	}
	val.errorf(node, path, "unsupported schema type %q", t)
	return nil, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		return "scalar " + strconv.Quote(node.Value)
	case yaml.AliasNode:
		return "alias"
	}
	return "document"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
