package i18n

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/currency"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

func parseTag(locale string) language.Tag {
	return language.Make(locale)
}

// pluralForm selects the CLDR plural category of v for tag.
func pluralForm(tag language.Tag, v float64, ordinal bool) plural.Form {
	i, fv, w, f, t := operands(v)
	rules := plural.Cardinal
	if ordinal {
		rules = plural.Ordinal
	}
	return rules.MatchPlural(tag, i, fv, w, f, t)
}

// operands derives the CLDR plural operands i, v, w, f and t from v's
// shortest decimal representation.
func operands(v float64) (i, fv, w, f, t int) {
	s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) > 9 {
		intPart = intPart[len(intPart)-9:]
	}
	i, _ = strconv.Atoi(intPart)
	if frac == "" {
		return i, 0, 0, 0, 0
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	trimmed := strings.TrimRight(frac, "0")
	f, _ = strconv.Atoi(frac)
	t, _ = strconv.Atoi(trimmed)
	return i, len(frac), len(trimmed), f, t
}

func (p PluralOptions) category(form plural.Form) *string {
	switch form {
	case plural.Zero:
		return p.Zero
	case plural.One:
		return p.One
	case plural.Two:
		return p.Two
	case plural.Few:
		return p.Few
	case plural.Many:
		return p.Many
	}
	return nil
}

func formatNumber(tag language.Tag, v float64, opts *NumberOptions) (string, error) {
	printer := message.NewPrinter(tag)
	if opts == nil {
		return printer.Sprint(number.Decimal(v)), nil
	}

	var numOpts []number.Option
	if opts.MinimumFractionDigits != nil {
		numOpts = append(numOpts, number.MinFractionDigits(*opts.MinimumFractionDigits))
	}
	if opts.MaximumFractionDigits != nil {
		numOpts = append(numOpts, number.MaxFractionDigits(*opts.MaximumFractionDigits))
	}
	if opts.UseGrouping != nil && !*opts.UseGrouping {
		numOpts = append(numOpts, number.NoSeparator())
	}

	switch strings.ToLower(opts.Style) {
	case "", "decimal":
		return printer.Sprint(number.Decimal(v, numOpts...)), nil
	case "percent":
		return printer.Sprint(number.Percent(v, numOpts...)), nil
	case "currency":
		unit, err := currency.ParseISO(opts.Currency)
		if err != nil {
			return "", fmt.Errorf("%w: currency %q: %v", ErrInvalidOptions, opts.Currency, err)
		}
		return printer.Sprint(currency.Symbol(unit.Amount(v))), nil
	default:
		return "", fmt.Errorf("%w: number style %q", ErrInvalidOptions, opts.Style)
	}
}

type listWords struct {
	and, or  string
	serial   bool
	andShort string
}

var listWordsByLanguage = map[string]listWords{
	"en": {and: "and", or: "or", serial: true, andShort: "&"},
	"sw": {and: "na", or: "au"},
	"de": {and: "und", or: "oder"},
	"fr": {and: "et", or: "ou"},
	"es": {and: "y", or: "o"},
}

// formatList joins items the way CLDR list patterns do for the languages
// the service ships tables for.
func formatList(tag language.Tag, items []string, opts ListOptions) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}

	base, _ := tag.Base()
	words, ok := listWordsByLanguage[base.String()]
	if !ok {
		words = listWordsByLanguage["en"]
	}
	serial := words.serial
	if region, conf := tag.Region(); conf == language.Exact && base.String() == "en" && region.String() != "US" {
		serial = false
	}

	var word string
	switch {
	case strings.EqualFold(opts.Type, "unit"):
		return strings.Join(items, ", ")
	case strings.EqualFold(opts.Type, "disjunction"):
		word = words.or
	case strings.EqualFold(opts.Style, "narrow"):
		return strings.Join(items, ", ")
	case strings.EqualFold(opts.Style, "short") && words.andShort != "":
		word = words.andShort
	default:
		word = words.and
	}

	head := strings.Join(items[:len(items)-1], ", ")
	last := items[len(items)-1]
	if serial && len(items) > 2 {
		return head + ", " + word + " " + last
	}
	return head + " " + word + " " + last
}

type dateLayouts struct {
	numeric, short, medium, long, full string
}

var dateLayoutsByLocale = map[monday.Locale]dateLayouts{
	monday.LocaleEnUS: {"1/2/2006", "1/2/06", "Jan 2, 2006", "January 2, 2006", "Monday, January 2, 2006"},
	monday.LocaleEnGB: {"02/01/2006", "02/01/2006", "2 Jan 2006", "2 January 2006", "Monday 2 January 2006"},
	monday.LocaleDeDE: {"2.1.2006", "02.01.06", "02.01.2006", "2. January 2006", "Monday, 2. January 2006"},
	monday.LocaleFrFR: {"02/01/2006", "02/01/2006", "2 Jan 2006", "2 January 2006", "Monday 2 January 2006"},
	monday.LocaleEsES: {"2/1/2006", "2/1/06", "2 Jan 2006", "2 de January de 2006", "Monday, 2 de January de 2006"},
}

func mondayLocale(tag language.Tag) monday.Locale {
	base, _ := tag.Base()
	switch base.String() {
	case "de":
		return monday.LocaleDeDE
	case "fr":
		return monday.LocaleFrFR
	case "es":
		return monday.LocaleEsES
	case "en":
		if region, conf := tag.Region(); conf == language.Exact && region.String() == "GB" {
			return monday.LocaleEnGB
		}
	}
	return monday.LocaleEnUS
}

func formatDate(tag language.Tag, t time.Time, opts DateOptions) (string, error) {
	if opts.TimeZone != "" {
		loc, err := time.LoadLocation(opts.TimeZone)
		if err != nil {
			return "", fmt.Errorf("%w: time zone %q: %v", ErrInvalidOptions, opts.TimeZone, err)
		}
		t = t.In(loc)
	}

	locale := mondayLocale(tag)
	layout := opts.Layout
	if layout == "" {
		layouts := dateLayoutsByLocale[locale]
		switch strings.ToLower(opts.Style) {
		case "":
			layout = layouts.numeric
		case "short":
			layout = layouts.short
		case "medium":
			layout = layouts.medium
		case "long":
			layout = layouts.long
		case "full":
			layout = layouts.full
		default:
			return "", fmt.Errorf("%w: date style %q", ErrInvalidOptions, opts.Style)
		}
	}
	return monday.Format(t, layout, locale), nil
}

func formName(form plural.Form) string {
	switch form {
	case plural.Zero:
		return "zero"
	case plural.One:
		return "one"
	case plural.Two:
		return "two"
	case plural.Few:
		return "few"
	case plural.Many:
		return "many"
	}
	return "other"
}
