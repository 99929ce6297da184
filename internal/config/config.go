// Package config defines the YAML configuration tree for a bridge
// client process: which account to connect, how to reach the terminal
// transport, where to persist history, and the ambient logging/metrics
// settings.
//
// Grounded on the teacher's kalshi/internal/config (GathererConfig):
// same yaml.v3 + os.ExpandEnv loader shape, same
// Load/LoadWithDefaults/LoadAndValidate staging, generalized from a
// market-data gatherer's sections to a bridge connection's.
package config

import "time"

// Config is the root configuration for a bridge client process.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Transport TransportConfig `yaml:"transport"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AccountConfig identifies the trading account this process connects.
type AccountConfig struct {
	ID                string `yaml:"id"`
	Application       string `yaml:"application"`        // e.g. "MetaApi"
	Token             string `yaml:"token"`               // bearer token for the transport
	HistoryStartTime  string `yaml:"history_start_time"`  // RFC3339; empty means epoch zero
}

// TransportConfig holds the WebSocket connection settings to the
// remote terminal service.
type TransportConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
}

// HistoryConfig selects and configures the history storage backend.
type HistoryConfig struct {
	Backend  string   `yaml:"backend"` // "memory" or "postgres"
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single Postgres connection (used when
// HistoryConfig.Backend is "postgres").
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "json" or "text"
}
