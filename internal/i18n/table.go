// Package i18n resolves dotted translation keys across an ordered locale
// chain and substitutes typed, locale-aware parameters.
package i18n

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MetaKey is the reserved top-level key holding table metadata. It is never
// resolvable as a translation.
const MetaKey = "i18n_meta"

// Meta describes one translation table.
type Meta struct {
	Code                   string `yaml:"code" json:"code"`
	Locale                 string `yaml:"locale,omitempty" json:"locale,omitempty"`
	Name                   string `yaml:"name,omitempty" json:"name,omitempty"`
	Label                  string `yaml:"label" json:"label"`
	NativeName             string `yaml:"nativeName" json:"native_name"`
	MarkMissingTranslation string `yaml:"markMissingTranslation,omitempty" json:"mark_missing_translation,omitempty"`
}

// NodeKind tells leaves from branches.
type NodeKind int

const (
	KindBranch NodeKind = iota
	KindString
	KindTemplate
)

// Node is one element of a translation tree. String leaves carry Text,
// template leaves carry Text plus Options, branches carry Children.
type Node struct {
	Kind     NodeKind
	Text     string
	Options  *ParamOptions
	Children map[string]*Node
}

// Translation is one language's tree plus its metadata.
type Translation struct {
	Meta Meta
	Root *Node
}

// ParamOptions says how each named parameter of a template is formatted.
// Map keys are parameter names, normalized to lower case on load.
type ParamOptions struct {
	Number  map[string]NumberOptions     `yaml:"number,omitempty"`
	Date    map[string]DateOptions       `yaml:"date,omitempty"`
	List    map[string]ListOptions       `yaml:"list,omitempty"`
	Enum    map[string]map[string]string `yaml:"enum,omitempty"`
	Literal map[string]string            `yaml:"literal,omitempty"`
	Plural  map[string]PluralOptions     `yaml:"plural,omitempty"`
}

// NumberOptions configures number rendering.
type NumberOptions struct {
	Style                 string `yaml:"style,omitempty"` // decimal, percent or currency
	Currency              string `yaml:"currency,omitempty"`
	MinimumFractionDigits *int   `yaml:"minimumFractionDigits,omitempty"`
	MaximumFractionDigits *int   `yaml:"maximumFractionDigits,omitempty"`
	UseGrouping           *bool  `yaml:"useGrouping,omitempty"`
}

// DateOptions configures date rendering. Layout, when set, is a Go time
// layout and wins over Style.
type DateOptions struct {
	Style    string `yaml:"style,omitempty"` // short, medium, long or full
	Layout   string `yaml:"layout,omitempty"`
	TimeZone string `yaml:"timeZone,omitempty"`
}

// ListOptions configures list rendering.
type ListOptions struct {
	Type  string `yaml:"type,omitempty"`  // conjunction or disjunction
	Style string `yaml:"style,omitempty"` // long, short or narrow
}

// PluralOptions holds the per-category strings of a plural parameter. The
// {?} token inside a category string is replaced by the formatted number.
type PluralOptions struct {
	Zero      *string        `yaml:"zero,omitempty"`
	One       *string        `yaml:"one,omitempty"`
	Two       *string        `yaml:"two,omitempty"`
	Few       *string        `yaml:"few,omitempty"`
	Many      *string        `yaml:"many,omitempty"`
	Other     string         `yaml:"other"`
	Formatter *NumberOptions `yaml:"formatter,omitempty"`
	Type      string         `yaml:"type,omitempty"`   // cardinal or ordinal
	Format    string         `yaml:"format,omitempty"` // numbers or strings
	Strings   []string       `yaml:"strings,omitempty"`
}

// UnmarshalYAML decodes a table document. Scalars become string leaves, a
// two element sequence [template, options] becomes a template leaf and
// mappings become branches.
func (t *Translation) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind == yaml.DocumentNode && len(value.Content) == 1 {
		value = resolveAlias(value.Content[0])
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: translation table must be a mapping", value.Line)
	}

	root := &Node{Kind: KindBranch, Children: make(map[string]*Node)}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		if key == MetaKey {
			if err := val.Decode(&t.Meta); err != nil {
				return fmt.Errorf("decode %s: %w", MetaKey, err)
			}
			continue
		}
		child, err := decodeNode(val, key)
		if err != nil {
			return err
		}
		root.Children[key] = child
	}
	if strings.TrimSpace(t.Meta.Code) == "" {
		return fmt.Errorf("%s.code is required", MetaKey)
	}
	t.Root = root
	return nil
}

func decodeNode(value *yaml.Node, path string) (*Node, error) {
	value = resolveAlias(value)
	switch value.Kind {
	case yaml.ScalarNode:
		return &Node{Kind: KindString, Text: value.Value}, nil
	case yaml.SequenceNode:
		if len(value.Content) == 0 || len(value.Content) > 2 {
			return nil, fmt.Errorf("%s (line %d): template must be [text] or [text, options]", path, value.Line)
		}
		text := resolveAlias(value.Content[0])
		if text.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s (line %d): template text must be a string", path, value.Line)
		}
		opts := &ParamOptions{}
		if len(value.Content) == 2 {
			if err := value.Content[1].Decode(opts); err != nil {
				return nil, fmt.Errorf("%s: decode options: %w", path, err)
			}
		}
		opts.normalize()
		return &Node{Kind: KindTemplate, Text: text.Value, Options: opts}, nil
	case yaml.MappingNode:
		node := &Node{Kind: KindBranch, Children: make(map[string]*Node, len(value.Content)/2)}
		for i := 0; i+1 < len(value.Content); i += 2 {
			key := value.Content[i].Value
			child, err := decodeNode(value.Content[i+1], path+"."+key)
			if err != nil {
				return nil, err
			}
			node.Children[key] = child
		}
		return node, nil
	default:
		return nil, fmt.Errorf("%s (line %d): unsupported value", path, value.Line)
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// normalize lower-cases parameter names and enum and literal keys, since
// argument names and enum values are matched case-insensitively.
func (o *ParamOptions) normalize() {
	o.Number = lowerKeys(o.Number)
	o.Date = lowerKeys(o.Date)
	o.List = lowerKeys(o.List)
	o.Plural = lowerKeys(o.Plural)
	o.Literal = lowerKeys(o.Literal)
	enums := lowerKeys(o.Enum)
	for name, values := range enums {
		enums[name] = lowerKeys(values)
	}
	o.Enum = enums
}

func lowerKeys[V any](in map[string]V) map[string]V {
	if in == nil {
		return nil
	}
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Find walks a dotted key. It returns nil when a segment is missing, when a
// segment is the metadata key, or when a leaf is reached before the last
// segment.
func (t *Translation) Find(key string) *Node {
	if t == nil || t.Root == nil || key == "" {
		return nil
	}
	node := t.Root
	for _, seg := range strings.Split(key, ".") {
		if seg == MetaKey || node.Kind != KindBranch {
			return nil
		}
		next, ok := node.Children[seg]
		if !ok {
			return nil
		}
		node = next
	}
	return node
}

// Walk visits every leaf in sorted key order.
func (t *Translation) Walk(fn func(key string, leaf *Node)) {
	if t == nil || t.Root == nil {
		return
	}
	walk(t.Root, "", fn)
}

func walk(node *Node, prefix string, fn func(string, *Node)) {
	keys := make([]string, 0, len(node.Children))
	for k := range node.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		child := node.Children[k]
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child.Kind == KindBranch {
			walk(child, path, fn)
			continue
		}
		fn(path, child)
	}
}

// Parse decodes one YAML table.
func Parse(data []byte) (*Translation, error) {
	var t Translation
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
