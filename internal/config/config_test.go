package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"linkcore/internal/models"
)

func noEnv(string) (string, bool) { return "", false }

func mapEnv(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.ListenAddr != def.ListenAddr || cfg.Store.Driver != "file" || cfg.Mode != ModeProduction {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkcore.yaml")
	doc := `
mode: Development
listen_addr: ":9000"
probe_timeout_seconds: 0
endpoints:
  - name: api
    url: https://api.example.com/health
    timeout_seconds: 30
    default: true
i18n:
  default_locale: sw
  fallback_locales: [en]
store:
  driver: sqlite
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Development() {
		t.Fatalf("expected development mode, got %q", cfg.Mode)
	}
	if cfg.ListenAddr != ":9000" || cfg.ProbeTimeoutSeconds != 5 || cfg.Store.Driver != "sqlite" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Endpoints) != 1 || !cfg.Endpoints[0].Default || cfg.Endpoints[0].TimeoutSeconds != 30 {
		t.Fatalf("unexpected endpoints %+v", cfg.Endpoints)
	}
	if cfg.I18n.DefaultLocale != "sw" || !reflect.DeepEqual(cfg.I18n.FallbackLocales, []string{"en"}) {
		t.Fatalf("unexpected i18n config %+v", cfg.I18n)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(mapEnv(map[string]string{
		"LINKCORE_MODE":                  "development",
		"LINKCORE_STORE_DRIVER":          "mysql",
		"LINKCORE_STORE_DSN":             "user:pass@tcp(127.0.0.1:3306)/linkcore",
		"LINKCORE_PROBE_TIMEOUT_SECONDS": "9",
		"LINKCORE_FALLBACK_LOCALES":      "sw, en ,",
		"LINKCORE_LOG_JSON":              "true",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Mode != ModeDevelopment || cfg.Store.Driver != "mysql" || cfg.ProbeTimeoutSeconds != 9 || !cfg.LogJSON {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.I18n.FallbackLocales, []string{"sw", "en"}) {
		t.Fatalf("FallbackLocales = %v", cfg.I18n.FallbackLocales)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := DefaultConfig()
	if err := bad.ApplyEnv(mapEnv(map[string]string{"LINKCORE_PROBE_TIMEOUT_SECONDS": "soon"})); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "staging"
	cfg.Store.Driver = "mysql"
	cfg.Endpoints = []models.Endpoint{
		{Name: "api", URL: "https://api.example.com"},
		{Name: "api", URL: "https://api.example.com"},
		{URL: "https://nameless.example.com"},
		{Name: "nourl", TimeoutSeconds: -1},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{
		`mode must be`,
		"store.dsn is required",
		"endpoint api is defined twice",
		"endpoint 2 is missing name",
		"endpoint nourl url is required",
		"endpoint nourl timeout_seconds must not be negative",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err.Error(), want)
		}
	}
}

func TestMissingEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequiredEnv = []string{"API_KEY", "REGION", "EMPTY"}
	got := cfg.MissingEnv(mapEnv(map[string]string{"REGION": "eu", "EMPTY": " "}))
	if !reflect.DeepEqual(got, []string{"API_KEY", "EMPTY"}) {
		t.Fatalf("MissingEnv() = %v", got)
	}
	if got := cfg.MissingEnv(noEnv); len(got) != 3 {
		t.Fatalf("MissingEnv() = %v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LINKCORE_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("LINKCORE_TEST_DOTENV", "")
	os.Unsetenv("LINKCORE_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("LINKCORE_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("LINKCORE_TEST_DOTENV = %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv(missing) error = %v", err)
	}
}
