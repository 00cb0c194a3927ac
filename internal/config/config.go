package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"linkcore/internal/models"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config represents configuration data for the linkcore service.
type Config struct {
	Mode                string            `yaml:"mode"`
	LogLevel            string            `yaml:"log_level"`
	LogJSON             bool              `yaml:"log_json"`
	ListenAddr          string            `yaml:"listen_addr"`
	DataDirectory       string            `yaml:"data_directory"`
	RequiredEnv         []string          `yaml:"required_env"`
	Endpoints           []models.Endpoint `yaml:"endpoints"`
	ProbeTimeoutSeconds int               `yaml:"probe_timeout_seconds"`
	HistoryLimit        int               `yaml:"history_limit"`
	// RevalidateSeconds below zero disables periodic revalidation.
	RevalidateSeconds   int               `yaml:"revalidate_interval_seconds"`
	NetState            NetState          `yaml:"netstate"`
	I18n                I18n              `yaml:"i18n"`
	Store               Store             `yaml:"store"`
}

// NetState configures the OS network-state poller.
type NetState struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	SysRoot             string `yaml:"sys_root"`
}

// I18n configures the translation tables.
type I18n struct {
	TranslationsDir string   `yaml:"translations_dir"`
	DefaultLocale   string   `yaml:"default_locale"`
	FallbackLocales []string `yaml:"fallback_locales"`
}

// Store selects the key-value backend.
type Store struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
	Secret string `yaml:"secret"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		Mode:                ModeProduction,
		LogLevel:            "info",
		ListenAddr:          ":8080",
		DataDirectory:       filepath.Join(".dist", "data"),
		ProbeTimeoutSeconds: 5,
		HistoryLimit:        2048,
		RevalidateSeconds:   300,
		NetState:            NetState{PollIntervalSeconds: 5},
		Store:               Store{Driver: "file"},
	}
}

// Development reports whether development escalation is active.
func (c Config) Development() bool {
	return c.Mode == ModeDevelopment
}

// Load reads configuration from yaml file. Missing files fall back to
// defaults. LINKCORE_* environment variables override file values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment when it exists.
// Variables already set are left untouched.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays LINKCORE_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("LINKCORE_MODE", &c.Mode)
	str("LINKCORE_LOG_LEVEL", &c.LogLevel)
	str("LINKCORE_LISTEN_ADDR", &c.ListenAddr)
	str("LINKCORE_DATA_DIR", &c.DataDirectory)
	str("LINKCORE_TRANSLATIONS_DIR", &c.I18n.TranslationsDir)
	str("LINKCORE_DEFAULT_LOCALE", &c.I18n.DefaultLocale)
	str("LINKCORE_STORE_DRIVER", &c.Store.Driver)
	str("LINKCORE_STORE_PATH", &c.Store.Path)
	str("LINKCORE_STORE_DSN", &c.Store.DSN)
	str("LINKCORE_STORE_SECRET", &c.Store.Secret)

	if v, ok := lookup("LINKCORE_LOG_JSON"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LINKCORE_LOG_JSON: %w", err)
		}
		c.LogJSON = b
	}
	if v, ok := lookup("LINKCORE_PROBE_TIMEOUT_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LINKCORE_PROBE_TIMEOUT_SECONDS: %w", err)
		}
		c.ProbeTimeoutSeconds = n
	}
	if v, ok := lookup("LINKCORE_FALLBACK_LOCALES"); ok && v != "" {
		c.I18n.FallbackLocales = splitList(v)
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.DataDirectory == "" {
		c.DataDirectory = def.DataDirectory
	}
	if c.ProbeTimeoutSeconds <= 0 {
		c.ProbeTimeoutSeconds = def.ProbeTimeoutSeconds
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.RevalidateSeconds == 0 {
		c.RevalidateSeconds = def.RevalidateSeconds
	}
	if c.NetState.PollIntervalSeconds <= 0 {
		c.NetState.PollIntervalSeconds = def.NetState.PollIntervalSeconds
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		result = multierror.Append(result, fmt.Errorf("mode must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode))
	}
	switch c.Store.Driver {
	case "file", "sqlite":
	case "mysql":
		if c.Store.DSN == "" {
			result = multierror.Append(result, errors.New("store.dsn is required for the mysql driver"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep.Name == "" {
			result = multierror.Append(result, fmt.Errorf("endpoint %d is missing name", i))
			continue
		}
		if seen[ep.Name] {
			result = multierror.Append(result, fmt.Errorf("endpoint %s is defined twice", ep.Name))
		}
		seen[ep.Name] = true
		if ep.URL == "" {
			result = multierror.Append(result, fmt.Errorf("endpoint %s url is required", ep.Name))
		}
		if ep.TimeoutSeconds < 0 {
			result = multierror.Append(result, fmt.Errorf("endpoint %s timeout_seconds must not be negative", ep.Name))
		}
	}
	return result.ErrorOrNil()
}

// MissingEnv returns the required environment variables that are unset or
// empty.
func (c Config) MissingEnv(lookup func(string) (string, bool)) []string {
	var missing []string
	for _, key := range c.RequiredEnv {
		if v, ok := lookup(key); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
