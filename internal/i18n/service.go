package i18n

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"linkcore/internal/logging"
	"linkcore/internal/storage"
)

// StorageKey is the key-value entry holding the selected locale.
const StorageKey = "user_language"

const serviceContext = "i18n-Service"

// Config lists the tables to serve. The first table is the default locale.
// Fallbacks are tried after the selected locale and the default.
type Config struct {
	Translations []*Translation
	Fallbacks    []string
}

// Service owns the loaded tables, the selected locale and its persistence.
type Service struct {
	store     storage.KV
	logger    hclog.Logger
	escalator logging.Escalator

	mu        sync.RWMutex
	tables    map[string]*Translation
	order     []string
	fallbacks []string
	engine    *Engine
	current   string

	// shared by every engine built from the registered tables
	manifests map[string]*Manifest
	patterns  *patterns
	engines   map[string]*Engine
}

// NewService creates a service persisting the locale in store. A nil store
// keeps the locale in memory only.
func NewService(store storage.KV, logger hclog.Logger, escalator logging.Escalator) *Service {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{
		store:     store,
		logger:    logger,
		escalator: escalator,
		tables:    make(map[string]*Translation),
		current:   "en",
		manifests: make(map[string]*Manifest),
		patterns:  newPatterns(256),
		engines:   make(map[string]*Engine),
	}
}

// Init registers the tables, restores the persisted locale or stores the
// default one, and returns the active locale. Storage failures fall back to
// the default locale. An empty table list escalates through DevFatal.
func (s *Service) Init(ctx context.Context, cfg Config) (string, error) {
	if len(cfg.Translations) == 0 {
		err := s.escalator.DevFatal(
			"at least one translation table is required",
			"no translation tables configured, keys will be returned untranslated",
			serviceContext,
		)
		return "", err
	}

	tables := make(map[string]*Translation, len(cfg.Translations))
	order := make([]string, 0, len(cfg.Translations))
	for _, t := range cfg.Translations {
		code := strings.ToLower(t.Meta.Code)
		if _, dup := tables[code]; dup {
			s.logger.Warn("duplicate translation table replaces earlier one", "code", code)
		} else {
			order = append(order, code)
		}
		tables[code] = t
		if err := Lint(t); err != nil {
			s.logger.Warn("translation table has problems", "error", err)
		}
	}

	defaultLocale := cfg.Translations[0].Meta.Code

	manifests := make(map[string]*Manifest, len(tables))
	for code, table := range tables {
		manifests[code] = BuildManifest(table)
	}

	s.mu.Lock()
	s.tables = tables
	s.manifests = manifests
	s.engines = make(map[string]*Engine)
	s.order = order
	s.fallbacks = append([]string(nil), cfg.Fallbacks...)
	s.current = defaultLocale
	s.mu.Unlock()

	locale, err := s.restore(ctx, defaultLocale)
	if err != nil {
		s.logger.Warn("locale persistence unavailable, using default", "error", err)
		locale = defaultLocale
	}
	locale = s.setup(locale)

	s.logger.Info(fmt.Sprintf("locale set to %q", locale), "languages", strings.Join(s.AvailableLocales(), ", "))
	return locale, nil
}

func (s *Service) restore(ctx context.Context, defaultLocale string) (string, error) {
	if s.store == nil {
		return defaultLocale, nil
	}
	stored, ok, err := s.store.Get(ctx, StorageKey)
	if err != nil {
		return "", err
	}
	if ok && stored != "" {
		return stored, nil
	}
	if err := s.store.Set(ctx, StorageKey, defaultLocale); err != nil {
		return "", err
	}
	return defaultLocale, nil
}

// setup rebuilds the engine for locale with the current locale as fallback
// and makes the chain head current.
func (s *Service) setup(locale string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine = s.newEngineLocked(locale)
	if len(s.engine.chain) > 0 {
		s.current = s.engine.chain[0]
	}
	s.engines = make(map[string]*Engine)
	return s.current
}

func (s *Service) newEngineLocked(locale string) *Engine {
	fallbacks := append([]string{s.current}, s.fallbacks...)
	return &Engine{
		chain:     BuildLocaleChain(locale, fallbacks...),
		tables:    s.tables,
		manifests: s.manifests,
		patterns:  s.patterns,
		logger:    s.logger.Named("engine"),
	}
}

// SetLocale switches to locale and persists the choice. The engine is only
// swapped when persisting succeeds.
func (s *Service) SetLocale(ctx context.Context, locale string) (string, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "", fmt.Errorf("%w: locale is empty", ErrInvalidArgument)
	}

	s.mu.RLock()
	engine := s.newEngineLocked(locale)
	s.mu.RUnlock()
	selected := engine.chain[0]

	if s.store != nil {
		if err := s.store.Set(ctx, StorageKey, selected); err != nil {
			return "", fmt.Errorf("persist locale: %w", err)
		}
	}

	s.mu.Lock()
	s.engine = engine
	s.current = selected
	s.engines = make(map[string]*Engine)
	s.mu.Unlock()

	s.logger.Info("locale changed", "locale", selected)
	return selected, nil
}

// ForLocale returns an engine for locale that falls back to the active
// locale. The active locale is not changed.
// Engines are cached per locale until the active locale or the tables change.
func (s *Service) ForLocale(locale string) *Engine {
	s.mu.RLock()
	engine, ok := s.engines[locale]
	s.mu.RUnlock()
	if ok {
		return engine
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if engine, ok := s.engines[locale]; ok {
		return engine
	}
	engine = s.newEngineLocked(locale)
	s.engines[locale] = engine
	return engine
}

// Locale returns the active locale.
func (s *Service) Locale() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// AvailableLocales returns the lower-case codes of the loaded tables in
// configuration order.
func (s *Service) AvailableLocales() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Tables returns the metadata of the loaded tables in configuration order.
func (s *Service) Tables() []Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Meta, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.tables[code].Meta)
	}
	return out
}

// Chain returns the active locale chain.
func (s *Service) Chain() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil
	}
	return s.engine.Chain()
}

// T translates key. Before Init it returns the key.
func (s *Service) T(key string, args Args) string {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine == nil {
		return key
	}
	return engine.Translate(key, args)
}

// Lookup is T with the failure reason exposed.
func (s *Service) Lookup(key string, args Args) (string, error) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine == nil {
		return "", ErrNoTable
	}
	return engine.Lookup(key, args)
}

// Manifest returns the argument manifest for the active locale.
func (s *Service) Manifest() *Manifest {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine == nil {
		return nil
	}
	return engine.Manifest()
}
