package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTransportURL     = "wss://bridge-terminal.example.com"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultCommandTimeout   = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultHistoryBackend   = "memory"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
)

func (c *Config) applyDefaults() {
	if c.Transport.URL == "" {
		c.Transport.URL = DefaultTransportURL
	}
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.CommandTimeout == 0 {
		c.Transport.CommandTimeout = DefaultCommandTimeout
	}
	if c.Transport.MaxRetries == 0 {
		c.Transport.MaxRetries = DefaultMaxRetries
	}

	if c.History.Backend == "" {
		c.History.Backend = DefaultHistoryBackend
	}
	if c.History.Backend == "postgres" {
		applyDBDefaults(&c.History.Postgres)
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLoggingLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLoggingFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
