// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logging, registry access and sync engine
// construction to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/config"
	"github.com/lherron/stencil/internal/db"
	"github.com/lherron/stencil/internal/reconcile"
	"github.com/lherron/stencil/internal/render"
	"github.com/lherron/stencil/internal/source"
	"github.com/lherron/stencil/internal/store"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Logger writes structured diagnostics to stderr
	Logger *slog.Logger

	// DB is the opened registry database (nil if NeedsDB is false)
	DB *db.DB

	// Store wraps DB (nil if NeedsDB is false)
	Store *store.Store

	// Sources resolves template sources, registered or by path
	Sources *source.Provider

	// Engine reconciles projects against their templates
	Engine *reconcile.Engine
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the registry database.
	NeedsDB bool
}

// DefaultOptions returns default options (registry required).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// NoDB returns options for commands that never touch the registry.
func NoDB() Options {
	return Options{NeedsDB: false}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	home, err := config.ResolveHome(flagString(cmd, "home"))
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(home)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if dbPath := flagString(cmd, "db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if level := flagString(cmd, "log-level"); level != "" {
		cfg.LogLevel = level
	}
	if flagString(cmd, "verbose") == "true" {
		cfg.LogLevel = "debug"
	}
	if flagString(cmd, "no-color") == "true" {
		cfg.Color = "never"
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: config.NewLogger(cmd.ErrOrStderr(), level),
	}

	var registry source.Registry
	if opts.NeedsDB {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open registry: %w", err)
		}
		applied, err := database.Migrate()
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate registry: %w", err)
		}
		if len(applied) > 0 {
			app.Logger.Debug("registry migrated", "path", cfg.DBPath, "applied", applied)
		}
		app.DB = database
		app.Store = store.New(database)
		registry = app.Store.Sources
	}

	app.Sources = source.NewProvider(registry)
	app.Engine, err = reconcile.New(app.Sources, cfg.DefaultSource, app.Logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

// Renderer builds the output renderer from the --output, --json, --yaml and
// --porcelain flags, falling back to the configured format.
func (a *App) Renderer(cmd *cobra.Command, statusColumn int) (*render.Renderer, error) {
	format := a.Config.Output
	if f := flagString(cmd, "output"); f != "" {
		format = f
	}
	if flagString(cmd, "json") == "true" {
		format = string(render.FormatJSON)
	}
	if flagString(cmd, "yaml") == "true" {
		format = string(render.FormatYAML)
	}
	parsed, err := render.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{
		Format:       parsed,
		Porcelain:    flagString(cmd, "porcelain") == "true",
		Color:        a.Color(cmd.OutOrStdout()),
		StatusColumn: statusColumn,
	}), nil
}

// Color reports whether output to w is styled.
func (a *App) Color(w io.Writer) bool {
	return a.Config.UseColor(w)
}
