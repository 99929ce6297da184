package config

import (
	"errors"
	"fmt"

	"github.com/rickgao/bridge-sync-core/internal/syncid"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Account.ID == "" {
		return errors.New("account.id is required")
	}
	if c.Account.Application == "" {
		return errors.New("account.application is required")
	}
	if err := syncid.ValidateApplication(c.Account.Application); err != nil {
		return fmt.Errorf("account.application: %w", err)
	}

	if c.Transport.URL == "" {
		return errors.New("transport.url is required")
	}
	if c.Transport.MaxRetries < 0 {
		return errors.New("transport.max_retries must be >= 0")
	}

	switch c.History.Backend {
	case "memory":
	case "postgres":
		if err := c.History.Postgres.validate("history.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("history.backend must be \"memory\" or \"postgres\", got %q", c.History.Backend)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
		}
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
