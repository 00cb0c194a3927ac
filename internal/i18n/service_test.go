package i18n

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"linkcore/internal/logging"
	"linkcore/internal/storage"
)

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("keystore locked")
}
func (failingKV) Set(context.Context, string, string) error { return errors.New("keystore locked") }
func (failingKV) Delete(context.Context, string) error      { return nil }
func (failingKV) Close() error                              { return nil }

func newFileStore(t *testing.T) *storage.FileKV {
	t.Helper()
	kv, err := storage.NewFileKV(filepath.Join(t.TempDir(), "kv.json"))
	if err != nil {
		t.Fatalf("NewFileKV() error = %v", err)
	}
	return kv
}

func TestServiceInitPersistsDefault(t *testing.T) {
	ctx := context.Background()
	kv := newFileStore(t)
	svc := NewService(kv, nil, logging.Escalator{})

	locale, err := svc.Init(ctx, Config{Translations: []*Translation{mustParse(t, swDoc), mustParse(t, enDoc)}})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if locale != "sw" || svc.Locale() != "sw" {
		t.Fatalf("locale = %q, want sw", locale)
	}
	stored, ok, err := kv.Get(ctx, StorageKey)
	if err != nil || !ok || stored != "sw" {
		t.Fatalf("stored = %q, %v, %v", stored, ok, err)
	}
	if got := svc.AvailableLocales(); !reflect.DeepEqual(got, []string{"sw", "en"}) {
		t.Fatalf("AvailableLocales() = %v", got)
	}
}

func TestServiceRestoresStoredLocale(t *testing.T) {
	ctx := context.Background()
	kv := newFileStore(t)
	if err := kv.Set(ctx, StorageKey, "en-US"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	svc := NewService(kv, nil, logging.Escalator{})

	locale, err := svc.Init(ctx, Config{Translations: []*Translation{mustParse(t, swDoc), mustParse(t, enDoc)}})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if locale != "en-US" {
		t.Fatalf("locale = %q, want en-US", locale)
	}
	if got := svc.Chain(); !reflect.DeepEqual(got, []string{"en-US", "en", "sw"}) {
		t.Fatalf("Chain() = %v", got)
	}
	if got := svc.T("greet", Args{"name": "Amara"}); got != "Hi Amara" {
		t.Fatalf("T() = %q", got)
	}
}

func TestServiceStorageFailureUsesDefault(t *testing.T) {
	svc := NewService(failingKV{}, nil, logging.Escalator{})
	locale, err := svc.Init(context.Background(), Config{Translations: []*Translation{mustParse(t, enDoc)}})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if locale != "en" {
		t.Fatalf("locale = %q, want en", locale)
	}
	if _, err := svc.SetLocale(context.Background(), "sw"); err == nil {
		t.Fatalf("expected SetLocale to report the storage failure")
	}
	if svc.Locale() != "en" {
		t.Fatalf("locale changed despite failed persistence: %q", svc.Locale())
	}
}

func TestServiceSetLocale(t *testing.T) {
	ctx := context.Background()
	kv := newFileStore(t)
	svc := NewService(kv, nil, logging.Escalator{})
	if _, err := svc.Init(ctx, Config{Translations: []*Translation{mustParse(t, enDoc), mustParse(t, swDoc)}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	locale, err := svc.SetLocale(ctx, "sw-KE")
	if err != nil {
		t.Fatalf("SetLocale() error = %v", err)
	}
	if locale != "sw-KE" {
		t.Fatalf("SetLocale() = %q", locale)
	}
	if got := svc.Chain(); !reflect.DeepEqual(got, []string{"sw-KE", "sw", "en"}) {
		t.Fatalf("Chain() = %v", got)
	}
	if got := svc.T("inbox", Args{"messages": 2}); got != "wewe jumbe mbili" {
		t.Fatalf("T() = %q", got)
	}
	stored, _, _ := kv.Get(ctx, StorageKey)
	if stored != "sw-KE" {
		t.Fatalf("stored = %q", stored)
	}
	if _, err := svc.SetLocale(ctx, " "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("SetLocale(blank) error = %v", err)
	}
}

func TestServiceWithoutTables(t *testing.T) {
	dev := NewService(nil, nil, logging.Escalator{Development: true})
	_, err := dev.Init(context.Background(), Config{})
	var fatal *logging.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("Init() error = %v, want *logging.FatalError", err)
	}

	prod := NewService(nil, nil, logging.Escalator{})
	if _, err := prod.Init(context.Background(), Config{}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := prod.T("any.key", nil); got != "any.key" {
		t.Fatalf("T() = %q", got)
	}
}

func TestDefaultTables(t *testing.T) {
	tables, err := DefaultTables()
	if err != nil {
		t.Fatalf("DefaultTables() error = %v", err)
	}
	if len(tables) < 2 || tables[0].Meta.Code != "en" {
		t.Fatalf("unexpected tables %+v", tables)
	}
	for _, table := range tables {
		if err := Lint(table); err != nil {
			t.Errorf("Lint(%s) error = %v", table.Meta.Code, err)
		}
	}

	svc := NewService(nil, nil, logging.Escalator{})
	if _, err := svc.Init(context.Background(), Config{Translations: tables}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := svc.T("reorder.cylinder", Args{"brand": "oryx"}); got != "Order another Oryx Gas cylinder" {
		t.Fatalf("T() = %q", got)
	}
	if got := svc.T("connectivity.connectionType", Args{"type": "cellular"}); got != "Connected via mobile data" {
		t.Fatalf("T() = %q", got)
	}
}

func TestLintReportsProblems(t *testing.T) {
	doc := `
i18n_meta:
  code: xx
  label: Test
  nativeName: Test
a: "{b: enum}"
c:
  - "{d: plural}"
  - plural:
      d:
        one: one
        format: strings
`
	err := Lint(mustParse(t, doc))
	if err == nil {
		t.Fatalf("expected lint problems")
	}
	for _, want := range []string{"enum b has no values", "plural d has no other case", "strings format without strings"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("lint error %q does not mention %q", err.Error(), want)
		}
	}
}

func TestManifest(t *testing.T) {
	m := BuildManifest(mustParse(t, enDoc))
	entry, ok := m.Entries["cylinder"]
	if !ok || len(entry.Params) != 1 || entry.Params[0].Shape != ShapeReference || entry.Params[0].Target != "brand" {
		t.Fatalf("unexpected cylinder entry %+v", entry)
	}
	brand := m.Entries["brand"]
	if !reflect.DeepEqual(brand.Params[0].Values, []string{"oryx", "puma"}) {
		t.Fatalf("unexpected enum values %+v", brand.Params[0])
	}
	if _, ok := m.Entries["i18n_meta"]; ok {
		t.Fatalf("metadata must not be listed")
	}
	if err := m.Validate("seen", Args{"when": "today"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := m.Validate("greet", Args{"name": "Amara", "extra": 1}); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	keys := m.Keys()
	if keys[0] != "brand" {
		t.Fatalf("Keys() not sorted: %v", keys)
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	docs := map[string]string{
		"missing code": "i18n_meta:\n  label: x\nhello: hi\n",
		"bad template": "i18n_meta:\n  code: en\nhello: [a, {}, c]\n",
		"not a mapping": "- a\n- b\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestServiceForLocale(t *testing.T) {
	svc := NewService(nil, nil, logging.Escalator{})
	if _, err := svc.Init(context.Background(), Config{Translations: []*Translation{mustParse(t, enDoc), mustParse(t, swDoc)}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	engine := svc.ForLocale("sw")
	if got := engine.Translate("inbox", Args{"messages": 0}); got != "wewe hakuna jumbe" {
		t.Fatalf("Translate() = %q", got)
	}
	if svc.Locale() != "en" {
		t.Fatalf("ForLocale changed the active locale to %q", svc.Locale())
	}
}

func TestManifestCoerce(t *testing.T) {
	m := BuildManifest(mustParse(t, enDoc))
	args, err := m.Coerce("seen", map[string]any{"when": "2024-03-01"})
	if err != nil {
		t.Fatalf("Coerce() error = %v", err)
	}
	engine := NewEngine("en-US", nil, tablesOf(mustParse(t, enDoc)), nil)
	if got := engine.Translate("seen", args); got != "on March 1, 2024" {
		t.Fatalf("Translate() = %q", got)
	}

	args, err = m.Coerce("names", map[string]any{"who": "Amara, Juma"})
	if err != nil || !reflect.DeepEqual(args["who"], []string{"Amara", "Juma"}) {
		t.Fatalf("Coerce(list) = %v, %v", args, err)
	}
	args, err = m.Coerce("count", map[string]any{"n": "2.5"})
	if err != nil || args["n"] != 2.5 {
		t.Fatalf("Coerce(number) = %v, %v", args, err)
	}
	if _, err := m.Coerce("count", map[string]any{"n": "many"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Coerce(bad number) error = %v", err)
	}
}

func TestServiceForLocaleCachesUntilLocaleChanges(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, logging.Escalator{})
	if _, err := svc.Init(ctx, Config{Translations: []*Translation{mustParse(t, enDoc), mustParse(t, swDoc)}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	first := svc.ForLocale("fr")
	if again := svc.ForLocale("fr"); again != first {
		t.Fatalf("ForLocale() built a new engine for a cached locale")
	}
	if got := first.Chain(); !reflect.DeepEqual(got, []string{"fr", "en"}) {
		t.Fatalf("Chain() = %v", got)
	}

	if _, err := svc.SetLocale(ctx, "sw"); err != nil {
		t.Fatalf("SetLocale() error = %v", err)
	}
	after := svc.ForLocale("fr")
	if after == first {
		t.Fatalf("ForLocale() kept an engine built for the previous active locale")
	}
	if got := after.Chain(); !reflect.DeepEqual(got, []string{"fr", "sw"}) {
		t.Fatalf("Chain() after SetLocale = %v", got)
	}
}
