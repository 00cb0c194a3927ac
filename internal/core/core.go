// Package core assembles the reachability engine, the translation service
// and their supporting stores from configuration.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"linkcore/internal/config"
	"linkcore/internal/i18n"
	"linkcore/internal/logging"
	"linkcore/internal/metrics"
	"linkcore/internal/models"
	"linkcore/internal/monitor"
	"linkcore/internal/netstate"
	"linkcore/internal/reachability"
	"linkcore/internal/storage"
)

// Deps overrides collaborators, mainly for tests. Zero values select the
// production implementations.
type Deps struct {
	Logger  hclog.Logger
	Source  netstate.Source
	Fetcher reachability.Fetcher
	Store   storage.KV
	Lookup  func(string) (string, bool)
	Now     func() time.Time
}

// App is the running process state.
type App struct {
	Config       config.Config
	Logger       hclog.Logger
	Store        storage.KV
	History      *storage.StatusHistory
	Source       netstate.Source
	Reachability *reachability.Engine
	I18n         *i18n.Service
	Metrics      *gometrics.InmemSink

	escalator   logging.Escalator
	lookup      func(string) (string, bool)
	now         func() time.Time
	monitor     *monitor.Monitor
	unsubscribe func()
	closeOnce   sync.Once
}

// New builds the application without starting anything.
func New(ctx context.Context, cfg config.Config, deps Deps) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	}
	lookup := deps.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	sink, err := metrics.Setup("linkcore")
	if err != nil {
		return nil, err
	}

	store := deps.Store
	if store == nil {
		store, err = storage.OpenKV(ctx, storage.KVOptions{
			Driver:  cfg.Store.Driver,
			Path:    cfg.Store.Path,
			DSN:     cfg.Store.DSN,
			Secret:  cfg.Store.Secret,
			DataDir: cfg.DataDirectory,
		})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	history, err := storage.NewStatusHistory(filepath.Join(cfg.DataDirectory, "status_history.json"), cfg.HistoryLimit)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}

	source := deps.Source
	if source == nil {
		opts := []netstate.InterfaceOption{
			netstate.WithPollInterval(time.Duration(cfg.NetState.PollIntervalSeconds) * time.Second),
			netstate.WithLogger(logger.Named("netstate")),
		}
		if cfg.NetState.SysRoot != "" {
			opts = append(opts, netstate.WithSysRoot(cfg.NetState.SysRoot))
		}
		source = netstate.NewInterfaceSource(opts...)
	}

	engine := reachability.New(source, deps.Fetcher,
		reachability.WithLogger(logger.Named("reachability")),
		reachability.WithProbeTimeout(time.Duration(cfg.ProbeTimeoutSeconds)*time.Second),
		reachability.WithClock(now),
	)

	escalator := logging.Escalator{Development: cfg.Development(), Logger: logger}
	app := &App{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		History:      history,
		Source:       source,
		Reachability: engine,
		I18n:         i18n.NewService(store, logger.Named("i18n"), escalator),
		Metrics:      sink,
		escalator:    escalator,
		lookup:       lookup,
		now:          now,
	}
	if cfg.RevalidateSeconds > 0 {
		app.monitor = monitor.New(time.Duration(cfg.RevalidateSeconds)*time.Second, source, engine, logger.Named("monitor"))
	}
	return app, nil
}

// Start validates the environment, loads translations, initializes the
// reachability engine and begins recording status history.
func (a *App) Start(ctx context.Context) error {
	if missing := a.Config.MissingEnv(a.lookup); len(missing) > 0 {
		list := strings.Join(missing, ", ")
		if err := a.escalator.DevFatal(
			"missing required environment variables: "+list,
			"missing environment variables "+list+", some features may not work",
			"startup",
		); err != nil {
			return err
		}
	}

	if err := a.InitI18n(ctx); err != nil {
		return err
	}

	a.unsubscribe = a.Reachability.OnConnectionChange(func(status models.ConnectionStatus) {
		if err := a.History.Record(status, a.now()); err != nil {
			a.Logger.Warn("record status history", "error", err)
		}
	})
	if err := a.Reachability.Initialize(ctx, a.Config.Endpoints); err != nil {
		return fmt.Errorf("init reachability: %w", err)
	}
	if a.monitor != nil {
		a.monitor.Start()
	}
	return nil
}

// InitI18n loads the translation tables and restores the persisted locale.
// Commands that only translate call it instead of Start.
func (a *App) InitI18n(ctx context.Context) error {
	tables, err := a.loadTables()
	if err != nil {
		return err
	}
	locale, err := a.I18n.Init(ctx, i18n.Config{Translations: tables, Fallbacks: a.Config.I18n.FallbackLocales})
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	a.Logger.Debug("translations ready", "locale", locale)
	return nil
}

func (a *App) loadTables() ([]*i18n.Translation, error) {
	var (
		tables []*i18n.Translation
		err    error
	)
	if dir := a.Config.I18n.TranslationsDir; dir != "" {
		tables, err = i18n.LoadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("load translations: %w", err)
		}
	} else {
		tables, err = i18n.DefaultTables()
		if err != nil {
			return nil, fmt.Errorf("load builtin translations: %w", err)
		}
	}
	if def := a.Config.I18n.DefaultLocale; def != "" {
		tables = i18n.PreferFirst(tables, def)
	}
	return tables, nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.monitor != nil {
			a.monitor.Stop()
		}
		a.Reachability.Close()
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		err = a.Store.Close()
	})
	return err
}

// IsFatal reports whether err came from the development escalation path.
func IsFatal(err error) bool {
	var fatal *logging.FatalError
	return errors.As(err, &fatal)
}
