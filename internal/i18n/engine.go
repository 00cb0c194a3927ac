package i18n

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
)

// MaxReferenceDepth bounds nested key references inside placeholders.
const MaxReferenceDepth = 8

// Engine translates keys for one locale chain. It holds no state besides the
// tables and the chain, so it is safe for concurrent use.
type Engine struct {
	chain     []string
	tables    map[string]*Translation
	manifests map[string]*Manifest
	patterns  *patterns
	logger    hclog.Logger
}

// NewEngine builds an engine for locale with the given fallbacks. tables is
// keyed by lower-case language code.
func NewEngine(locale string, fallbacks []string, tables map[string]*Translation, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	manifests := make(map[string]*Manifest, len(tables))
	for code, table := range tables {
		manifests[code] = BuildManifest(table)
	}
	return &Engine{
		chain:     BuildLocaleChain(locale, fallbacks...),
		tables:    tables,
		manifests: manifests,
		patterns:  newPatterns(256),
		logger:    logger,
	}
}

// Chain returns the locale resolution order.
func (e *Engine) Chain() []string {
	return append([]string(nil), e.chain...)
}

// Translate resolves key, falling back to the table's missing-translation
// marker or to the key itself.
func (e *Engine) Translate(key string, args Args) string {
	out, err := e.Lookup(key, args)
	if err == nil {
		return out
	}
	e.logger.Debug("translation miss", "key", key, "error", err)

	_, table, ok := e.resolvable()
	if ok && table.Meta.MarkMissingTranslation != "" {
		return strings.Replace(table.Meta.MarkMissingTranslation, "{key}", key, 1)
	}
	return key
}

// Lookup resolves key in the first locale of the chain that has a table. The
// search ends there even when the key is missing in that table.
func (e *Engine) Lookup(key string, args Args) (string, error) {
	locale, table, ok := e.resolvable()
	if !ok {
		return "", ErrNoTable
	}
	if len(args) > 0 {
		if manifest := e.manifests[strings.ToLower(table.Meta.Code)]; manifest != nil {
			if err := manifest.Validate(key, args); err != nil {
				return "", err
			}
		}
	}
	return e.resolve(parseTag(locale), table, key, args, 0)
}

// Manifest returns the argument manifest of the table Lookup would use.
func (e *Engine) Manifest() *Manifest {
	_, table, ok := e.resolvable()
	if !ok {
		return nil
	}
	return e.manifests[strings.ToLower(table.Meta.Code)]
}

func (e *Engine) resolvable() (string, *Translation, bool) {
	for _, locale := range e.chain {
		if table, ok := e.tables[strings.ToLower(locale)]; ok {
			return locale, table, true
		}
	}
	return "", nil, false
}

func (e *Engine) resolve(tag language.Tag, table *Translation, key string, args Args, depth int) (string, error) {
	node := table.Find(key)
	if node == nil || node.Kind == KindBranch {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if node.Kind == KindString {
		if len(args) == 0 {
			return node.Text, nil
		}
		return e.substitute(tag, table, node.Text, args, &ParamOptions{}, depth)
	}
	return e.substitute(tag, table, node.Text, args, node.Options, depth)
}

// substitute replaces one placeholder per argument, in sorted argument order,
// over the accumulating result. Arguments without a placeholder are ignored.
func (e *Engine) substitute(tag language.Tag, table *Translation, template string, args Args, opts *ParamOptions, depth int) (string, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	result := template
	for _, rawName := range names {
		name := strings.ToLower(rawName)
		ph, ok := e.patterns.find(result, name)
		if !ok {
			continue
		}
		replacement, err := e.render(tag, table, name, ph.annotation, args[rawName], opts, depth)
		if err != nil {
			return "", err
		}
		result = result[:ph.start] + replacement + result[ph.end:]
	}
	return result, nil
}

func (e *Engine) render(tag language.Tag, table *Translation, name, annotation string, value any, opts *ParamOptions, depth int) (string, error) {
	switch annotation {
	case typePlural:
		return renderPlural(tag, name, value, opts.Plural[name])
	case typeNumber:
		v, ok := toFloat(value, false)
		if !ok {
			return "", invalidArg(name, "a number", value)
		}
		var numOpts *NumberOptions
		if o, ok := opts.Number[name]; ok {
			numOpts = &o
		}
		return formatNumber(tag, v, numOpts)
	case typeList:
		items, ok := toStrings(value)
		if !ok {
			return "", invalidArg(name, "a list of strings", value)
		}
		return formatList(tag, items, opts.List[name]), nil
	case typeDate:
		t, ok := toTime(value)
		if !ok {
			return "", invalidArg(name, "a time.Time", value)
		}
		return formatDate(tag, t, opts.Date[name])
	case typeEnum:
		s, ok := value.(string)
		if !ok {
			return "", invalidArg(name, "a string", value)
		}
		replacement, ok := opts.Enum[name][strings.ToLower(s)]
		if !ok {
			return "", fmt.Errorf("%w: %s has no entry for %q", ErrMissingEnumValue, name, s)
		}
		return replacement, nil
	}

	s, ok := value.(string)
	if !ok {
		return "", invalidArg(name, "a string", value)
	}
	if annotation == "" {
		if replacement, ok := opts.Literal[strings.ToLower(s)]; ok {
			return replacement, nil
		}
		return s, nil
	}

	if depth+1 > MaxReferenceDepth {
		return "", fmt.Errorf("%w: %s via %q", ErrRecursionDepth, name, annotation)
	}
	replacement, err := e.resolve(tag, table, annotation, Args{name: s}, depth+1)
	if err != nil {
		return "", fmt.Errorf("resolve reference %q for %s: %w", annotation, name, err)
	}
	return replacement, nil
}

func renderPlural(tag language.Tag, name string, value any, opts PluralOptions) (string, error) {
	v, ok := toFloat(value, true)
	if !ok || math.IsNaN(v) {
		return "", invalidArg(name, "a number", value)
	}

	form := pluralForm(tag, v, strings.EqualFold(opts.Type, "ordinal"))
	var replacement *string
	if c := opts.category(form); c != nil {
		replacement = c
	} else if opts.Other != "" {
		other := opts.Other
		replacement = &other
	}

	switch {
	case v == 0 && opts.Zero != nil:
		replacement = opts.Zero
	case v >= 0 && v <= 10 && strings.EqualFold(opts.Format, "strings"):
		idx := int(v)
		if replacement != nil && float64(idx) == v && idx < len(opts.Strings) {
			spelled := strings.Replace(*replacement, "{?}", opts.Strings[idx], 1)
			replacement = &spelled
		}
	}
	if replacement == nil {
		return "", fmt.Errorf("%w: %s has no %s or other case", ErrMissingPluralCase, name, formName(form))
	}

	formatted, err := formatNumber(tag, v, opts.Formatter)
	if err != nil {
		return "", err
	}
	return strings.Replace(*replacement, "{?}", formatted, 1), nil
}

// IsMiss reports whether err came from an unresolvable key rather than from
// bad arguments or options.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoTable)
}
