package i18n

import "strings"

// BuildLocaleChain returns locale and its parents, then every fallback with
// its parents, without duplicates and in first-seen order. A parent drops the
// last dash-separated subtag: "zh-Hant-TW" yields "zh-Hant" and "zh".
func BuildLocaleChain(locale string, fallbacks ...string) []string {
	seen := make(map[string]struct{})
	var chain []string
	for _, l := range append([]string{locale}, fallbacks...) {
		for _, candidate := range parents(l) {
			if _, ok := seen[candidate]; ok {
				continue
			}
			seen[candidate] = struct{}{}
			chain = append(chain, candidate)
		}
	}
	return chain
}

func parents(locale string) []string {
	var out []string
	for current := strings.TrimSpace(locale); current != ""; {
		out = append(out, current)
		i := strings.LastIndex(current, "-")
		if i < 0 {
			break
		}
		current = strings.TrimRight(current[:i], "-")
	}
	return out
}
