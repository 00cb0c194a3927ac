package i18n

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// placeholder is one {name} or {name: annotation} occurrence.
type placeholder struct {
	start, end int
	annotation string
}

// Placeholder types understood by the formatter. Any other annotation is a
// reference to another translation key.
const (
	typePlural = "plural"
	typeNumber = "number"
	typeList   = "list"
	typeDate   = "date"
	typeEnum   = "enum"
)

var anyPlaceholder = regexp.MustCompile(`\{ *([^{}:\s?][^{}:]*?) *(?:: *([^{}]*?))? *\}`)

// matchers holds the two forms of a placeholder for one argument name.
type matchers struct {
	annotated *regexp.Regexp
	bare      *regexp.Regexp
}

// patterns caches the per-argument matchers. Argument names repeat across
// calls, so compiling once per name is enough.
type patterns struct {
	cache *lru.Cache[string, matchers]
}

func newPatterns(size int) *patterns {
	cache, err := lru.New[string, matchers](size)
	if err != nil {
		panic(err)
	}
	return &patterns{cache: cache}
}

func (p *patterns) forName(name string) matchers {
	if m, ok := p.cache.Get(name); ok {
		return m
	}
	quoted := regexp.QuoteMeta(name)
	m := matchers{
		annotated: regexp.MustCompile(`(?i)\{ *` + quoted + ` *: *([^{}]*?) *\}`),
		bare:      regexp.MustCompile(`(?i)\{ *` + quoted + ` *\}`),
	}
	p.cache.Add(name, m)
	return m
}

// find locates the placeholder for name in s. An annotated {name: type}
// anywhere in s wins over a bare {name}.
func (p *patterns) find(s, name string) (placeholder, bool) {
	m := p.forName(name)
	if loc := m.annotated.FindStringSubmatchIndex(s); loc != nil {
		return placeholder{start: loc[0], end: loc[1], annotation: strings.TrimSpace(s[loc[2]:loc[3]])}, true
	}
	if loc := m.bare.FindStringIndex(s); loc != nil {
		return placeholder{start: loc[0], end: loc[1]}, true
	}
	return placeholder{}, false
}

type declared struct {
	name       string
	annotation string
}

// scanPlaceholders lists every placeholder in a template in order of
// appearance, with lower-cased names.
func scanPlaceholders(template string) []declared {
	var out []declared
	for _, m := range anyPlaceholder.FindAllStringSubmatch(template, -1) {
		out = append(out, declared{
			name:       strings.ToLower(strings.TrimSpace(m[1])),
			annotation: strings.TrimSpace(m[2]),
		})
	}
	return out
}
