package i18n

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Shape is the kind of value a parameter accepts.
type Shape string

const (
	ShapeString    Shape = "string"
	ShapeNumber    Shape = "number"
	ShapeDate      Shape = "date"
	ShapeList      Shape = "list"
	ShapeEnum      Shape = "enum"
	ShapePlural    Shape = "plural"
	ShapeReference Shape = "reference"
)

// Param is one placeholder of a key.
type Param struct {
	Name   string   `json:"name"`
	Shape  Shape    `json:"shape"`
	Target string   `json:"target,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Entry lists the parameters of one key, in order of first appearance.
type Entry struct {
	Key      string  `json:"key"`
	Template bool    `json:"template"`
	Params   []Param `json:"params"`
}

// Manifest is the set of valid keys of one table and the argument shape each
// expects.
type Manifest struct {
	Code    string            `json:"code"`
	Entries map[string]*Entry `json:"entries"`
}

// BuildManifest derives the manifest from a table.
func BuildManifest(table *Translation) *Manifest {
	m := &Manifest{Entries: make(map[string]*Entry)}
	if table == nil {
		return m
	}
	m.Code = table.Meta.Code
	table.Walk(func(key string, leaf *Node) {
		entry := &Entry{Key: key, Template: leaf.Kind == KindTemplate}
		index := make(map[string]int)
		for _, d := range scanPlaceholders(leaf.Text) {
			i, seen := index[d.name]
			switch {
			case !seen:
				index[d.name] = len(entry.Params)
				entry.Params = append(entry.Params, paramFor(d, leaf.Options))
			case d.annotation != "" && entry.Params[i].Shape == ShapeString && entry.Params[i].Target == "":
				// an annotated declaration wins over an earlier bare one
				entry.Params[i] = paramFor(d, leaf.Options)
			}
		}
		m.Entries[key] = entry
	})
	return m
}

func paramFor(d declared, opts *ParamOptions) Param {
	p := Param{Name: d.name}
	switch d.annotation {
	case "":
		p.Shape = ShapeString
	case typeNumber:
		p.Shape = ShapeNumber
	case typeDate:
		p.Shape = ShapeDate
	case typeList:
		p.Shape = ShapeList
	case typePlural:
		p.Shape = ShapePlural
	case typeEnum:
		p.Shape = ShapeEnum
		if opts != nil {
			for value := range opts.Enum[d.name] {
				p.Values = append(p.Values, value)
			}
			sort.Strings(p.Values)
		}
	default:
		p.Shape = ShapeReference
		p.Target = d.annotation
	}
	return p
}

// Keys returns every valid key in sorted order.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Entries))
	for k := range m.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks args against the shape of key. Every declared parameter
// must be supplied with a value of the right kind. Extra arguments are
// ignored.
func (m *Manifest) Validate(key string, args Args) error {
	entry, ok := m.Entries[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	supplied := make(map[string]any, len(args))
	for name, v := range args {
		supplied[strings.ToLower(name)] = v
	}

	var result *multierror.Error
	for _, p := range entry.Params {
		v, ok := supplied[p.Name]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("%w: %s is required", ErrInvalidArgument, p.Name))
			continue
		}
		if err := p.check(v); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (p Param) check(v any) error {
	var ok bool
	want := "a string"
	switch p.Shape {
	case ShapeNumber:
		_, ok = toFloat(v, false)
		want = "a number"
	case ShapePlural:
		_, ok = toFloat(v, true)
		want = "a number"
	case ShapeDate:
		_, ok = toTime(v)
		want = "a time.Time"
	case ShapeList:
		_, ok = toStrings(v)
		want = "a list of strings"
	default:
		_, ok = v.(string)
	}
	if !ok {
		return invalidArg(p.Name, want, v)
	}
	return nil
}

// Coerce converts loosely typed input, as decoded from JSON or read from a
// command line, into the value kinds key expects. Numbers may arrive as
// strings, dates as RFC 3339 or YYYY-MM-DD strings and lists as
// comma-separated strings. Unknown keys and parameters pass through.
func (m *Manifest) Coerce(key string, raw map[string]any) (Args, error) {
	args := make(Args, len(raw))
	shapes := make(map[string]Shape)
	if entry, ok := m.Entries[key]; ok {
		for _, p := range entry.Params {
			shapes[p.Name] = p.Shape
		}
	}
	for name, v := range raw {
		s, isString := v.(string)
		switch shape := shapes[strings.ToLower(name)]; {
		case (shape == ShapeNumber || shape == ShapePlural) && isString:
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, invalidArg(name, "a number", v)
			}
			args[name] = f
		case shape == ShapeDate && isString:
			t, err := parseDate(s)
			if err != nil {
				return nil, invalidArg(name, "an RFC 3339 date", v)
			}
			args[name] = t
		case shape == ShapeList && isString:
			args[name] = splitList(s)
		default:
			args[name] = v
		}
	}
	return args, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
