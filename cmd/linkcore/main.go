// linkcore: network reachability monitor and translation service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"linkcore/internal/config"
	"linkcore/internal/core"
	"linkcore/internal/history"
	"linkcore/internal/server"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	envFile    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "linkcore",
		Short: "Network reachability monitor with a translation service",
		Long: `linkcore watches the host's network links, verifies that the internet is
actually reachable through a set of probe endpoints and serves the result,
its history and localized strings over HTTP.

Commands:
  serve       Run the monitor and the HTTP API
  status      Print the current connection status
  probe       Check one endpoint
  translate   Render a translation key
  locales     List the loaded translation tables
  manifest    Print the argument manifest of the active table`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file (YAML)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")

	root.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newProbeCmd(),
		newTranslateCmd(),
		newLocalesCmd(),
		newManifestCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "linkcore: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration and builds the application. start selects a
// full start over translation-only initialization.
func newApp(ctx context.Context, start bool) (*core.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	app, err := core.New(ctx, cfg, core.Deps{})
	if err != nil {
		return nil, err
	}
	if start {
		err = app.Start(ctx)
	} else {
		err = app.InitI18n(ctx)
	}
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = app.Config.ListenAddr
			}
			srv := server.New(addr, server.Deps{
				Reachability: app.Reachability,
				I18n:         app.I18n,
				History:      app.History,
				Metrics:      app.Metrics,
				Logger:       app.Logger.Named("http"),
			})

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					app.Logger.Error("server shutdown", "error", err)
				}
			}()

			app.Logger.Info("linkcore listening", "addr", addr, "endpoints", len(app.Reachability.Endpoints()))
			if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to listen_addr from the config)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			status := app.Reachability.Status()
			if asJSON {
				return printJSON(status)
			}
			state := history.StateOf(status)
			fmt.Printf("state:     %s\n", state)
			fmt.Printf("type:      %s\n", status.ConnectionType)
			fmt.Printf("connected: %t\n", status.IsConnected)
			fmt.Printf("reachable: %t\n", status.IsReachable)
			fmt.Printf("message:   %s\n", app.I18n.T("connectivity."+state, map[string]any{"network": networkName(status.SSID, status.Carrier)}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status as JSON")
	return cmd
}

func networkName(ssid, carrier *string) string {
	switch {
	case ssid != nil && *ssid != "":
		return *ssid
	case carrier != nil && *carrier != "":
		return *carrier
	}
	return "the network"
}

func newProbeCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "probe NAME",
		Short: "Check one endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			reachable, err := app.Reachability.Probe(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			fmt.Printf("%s reachable: %t\n", args[0], reachable)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore the cached result")
	return cmd
}

func newTranslateCmd() *cobra.Command {
	var (
		locale  string
		rawArgs []string
	)
	cmd := &cobra.Command{
		Use:   "translate KEY",
		Short: "Render a translation key",
		Example: `  linkcore translate inboxMessages --arg name=Ann --arg messages=3
  linkcore translate connectivity.networks --locale sw --arg networks=home,office`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			raw := make(map[string]any, len(rawArgs))
			for _, kv := range rawArgs {
				name, value, ok := strings.Cut(kv, "=")
				if !ok || name == "" {
					return fmt.Errorf("invalid --arg %q, want name=value", kv)
				}
				raw[name] = value
			}

			if locale == "" {
				locale = app.I18n.Locale()
			}
			engine := app.I18n.ForLocale(locale)
			translationArgs := make(map[string]any)
			if manifest := engine.Manifest(); manifest != nil && len(raw) > 0 {
				translationArgs, err = manifest.Coerce(args[0], raw)
				if err != nil {
					return err
				}
			}
			text, err := engine.Lookup(args[0], translationArgs)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
	cmd.Flags().StringVar(&locale, "locale", "", "locale to render (defaults to the persisted one)")
	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "argument as name=value (repeatable)")
	return cmd
}

func newLocalesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: "List the loaded translation tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			current := app.I18n.Locale()
			for _, meta := range app.I18n.Tables() {
				marker := " "
				if strings.EqualFold(meta.Code, current) {
					marker = "*"
				}
				fmt.Printf("%s %-6s %-10s %s\n", marker, meta.Code, meta.Locale, meta.NativeName)
			}
			fmt.Printf("chain: %s\n", strings.Join(app.I18n.Chain(), " > "))
			return nil
		},
	}
}

func newManifestCmd() *cobra.Command {
	var keysOnly bool
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the argument manifest of the active table",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			manifest := app.I18n.Manifest()
			if manifest == nil {
				return errors.New("no translation table loaded")
			}
			if !keysOnly {
				return printJSON(manifest)
			}
			for _, key := range manifest.Keys() {
				fmt.Println(key)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keysOnly, "keys", false, "print only the valid keys")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("linkcore version %s (%s)\n", version, commit)
		},
	}
}
