package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/stores"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/telemetry"
)

// Settings are the runbookctl settings after defaults, file and flags have
// been applied.
type Settings struct {
	// DatabasePath is the SQLite file holding state, events and local
	// resources.
	DatabasePath string

	// StateTable is the action state table name.
	StateTable string

	// EventLog enables the persisted event log.
	EventLog bool

	// Topological orders actions by dependsOn before planning.
	Topological bool

	Telemetry *telemetry.Config
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() *Settings {
	return &Settings{
		DatabasePath: "runbook.db",
		StateTable:   stores.DefaultStateTable,
		EventLog:     true,
		Telemetry:    telemetry.DefaultConfig(),
	}
}

// settings.toml key mapping.
type fileSettings struct {
	// Environment selects the telemetry preset the sections below refine.
	Environment string `toml:"environment"`

	Database struct {
		Path       string `toml:"path"`
		StateTable string `toml:"state_table"`
		EventLog   bool   `toml:"event_log"`
	} `toml:"database"`

	Engine struct {
		Topological bool `toml:"topological"`
	} `toml:"engine"`

	Logging struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		Output string `toml:"output"`
		Caller bool   `toml:"caller"`
	} `toml:"logging"`

	Tracing struct {
		Enabled      bool              `toml:"enabled"`
		Exporter     string            `toml:"exporter"`
		Endpoint     string            `toml:"endpoint"`
		SamplingRate float64           `toml:"sampling_rate"`
		Insecure     bool              `toml:"insecure"`
		Headers      map[string]string `toml:"headers"`
	} `toml:"tracing"`

	Metrics struct {
		Enabled       bool   `toml:"enabled"`
		ListenAddress string `toml:"listen_address"`
		Path          string `toml:"path"`
		Namespace     string `toml:"namespace"`
	} `toml:"metrics"`
}

// LoadSettings overlays the TOML file at path on DefaultSettings. Keys absent
// from the file keep their defaults. An empty path returns the defaults.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()
	if path == "" {
		return cfg, nil
	}

	var raw fileSettings
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("failed to load settings: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("environment") {
		env := strings.ToLower(strings.TrimSpace(raw.Environment))
		tel, err := telemetry.ConfigForEnvironment(env)
		if err != nil {
			return nil, fmt.Errorf("invalid settings %s: %w", path, err)
		}
		cfg.Telemetry = tel
	}

	if meta.IsDefined("database", "path") {
		cfg.DatabasePath = strings.TrimSpace(raw.Database.Path)
	}
	if meta.IsDefined("database", "state_table") {
		cfg.StateTable = strings.TrimSpace(raw.Database.StateTable)
	}
	if meta.IsDefined("database", "event_log") {
		cfg.EventLog = raw.Database.EventLog
	}
	if meta.IsDefined("engine", "topological") {
		cfg.Topological = raw.Engine.Topological
	}

	tel := cfg.Telemetry
	if meta.IsDefined("logging", "level") {
		tel.Logging.Level = strings.ToLower(strings.TrimSpace(raw.Logging.Level))
	}
	if meta.IsDefined("logging", "format") {
		tel.Logging.Format = strings.TrimSpace(raw.Logging.Format)
	}
	if meta.IsDefined("logging", "output") {
		tel.Logging.Output = strings.TrimSpace(raw.Logging.Output)
	}
	if meta.IsDefined("logging", "caller") {
		tel.Logging.EnableCaller = raw.Logging.Caller
	}
	if meta.IsDefined("tracing", "enabled") {
		tel.Tracing.Enabled = raw.Tracing.Enabled
	}
	if meta.IsDefined("tracing", "exporter") {
		tel.Tracing.Exporter = strings.TrimSpace(raw.Tracing.Exporter)
	}
	if meta.IsDefined("tracing", "endpoint") {
		tel.Tracing.Endpoint = strings.TrimSpace(raw.Tracing.Endpoint)
	}
	if meta.IsDefined("tracing", "sampling_rate") {
		tel.Tracing.SamplingRate = raw.Tracing.SamplingRate
	}
	if meta.IsDefined("tracing", "insecure") {
		tel.Tracing.Insecure = raw.Tracing.Insecure
	}
	if meta.IsDefined("tracing", "headers") {
		tel.Tracing.Headers = raw.Tracing.Headers
	}
	if meta.IsDefined("metrics", "enabled") {
		tel.Metrics.Enabled = raw.Metrics.Enabled
	}
	if meta.IsDefined("metrics", "listen_address") {
		tel.Metrics.ListenAddress = strings.TrimSpace(raw.Metrics.ListenAddress)
	}
	if meta.IsDefined("metrics", "path") {
		tel.Metrics.Path = strings.TrimSpace(raw.Metrics.Path)
	}
	if meta.IsDefined("metrics", "namespace") {
		tel.Metrics.Namespace = strings.TrimSpace(raw.Metrics.Namespace)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if s.StateTable == "" {
		return fmt.Errorf("state table is required")
	}
	return s.Telemetry.Validate()
}
