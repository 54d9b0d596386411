package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/config"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/providers/local"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/stores"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/telemetry"
)

// app wires the settings, database, stores and telemetry for one command.
type app struct {
	settings *config.Settings
	db       *sql.DB
	state    *stores.StateStore
	events   *stores.EventLog
	port     *local.Port
	tel      *telemetry.Telemetry
}

// loadSettings reads the settings file and applies flag overrides.
func (o *rootOptions) loadSettings() (*config.Settings, error) {
	settings, err := config.LoadSettings(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		settings.DatabasePath = o.dbPath
	}
	if o.topological {
		settings.Topological = true
	}
	if o.metricsAddr != "" {
		settings.Telemetry.Metrics.Enabled = true
		settings.Telemetry.Metrics.ListenAddress = o.metricsAddr
	}
	settings.Telemetry.ServiceVersion = o.version
	return settings, settings.Validate()
}

func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	settings, err := opts.loadSettings()
	if err != nil {
		return nil, err
	}

	db, err := stores.Open(ctx, stores.Config{Path: settings.DatabasePath})
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings, db: db}
	if err := a.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	a.tel.StartMetricsServer()
	log.Debug().
		Str("db", settings.DatabasePath).
		Bool("event_log", settings.EventLog).
		Bool("topological", settings.Topological).
		Msg("Opened workspace")
	return a, nil
}

func (a *app) init() error {
	var err error
	if a.state, err = stores.NewStateStore(a.db, stores.WithStateTable(a.settings.StateTable)); err != nil {
		return err
	}
	if a.settings.EventLog {
		if a.events, err = stores.NewEventLog(a.db, ""); err != nil {
			return err
		}
	}
	if a.port, err = local.NewPort(a.db); err != nil {
		return err
	}
	a.tel, err = telemetry.NewTelemetry(a.settings.Telemetry)
	return err
}

// runner builds a Runner with telemetry and, when enabled, the event log.
func (a *app) runner() (*engine.Runner, error) {
	hooks := a.tel.Hooks()
	if a.events != nil {
		hooks = engine.ChainHooks(hooks, a.events.Hooks())
	}

	opts := []engine.Option{
		engine.WithHooks(hooks),
		engine.WithLogger(a.tel.Logger.NewComponentLogger("engine").Zerolog()),
	}
	if a.settings.Topological {
		opts = append(opts, engine.WithTopologicalOrder())
	}
	return engine.NewRunner(a.port, a.state, opts...)
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.tel.Shutdown(ctx), a.db.Close())
}

// writeOutput renders v in the requested format.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (must be json or yaml)", format)
	}
}
