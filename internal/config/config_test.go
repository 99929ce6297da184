package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("basic loading", func(t *testing.T) {
		yaml := `
account:
  id: acc-1
  application: MetaApi
transport:
  url: wss://terminal.example.com
history:
  backend: memory
`
		path := writeTempFile(t, yaml)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.Account.ID != "acc-1" {
			t.Errorf("Account.ID = %q, want %q", cfg.Account.ID, "acc-1")
		}
		if cfg.Account.Application != "MetaApi" {
			t.Errorf("Account.Application = %q, want %q", cfg.Account.Application, "MetaApi")
		}
		if cfg.Transport.URL != "wss://terminal.example.com" {
			t.Errorf("Transport.URL = %q, want %q", cfg.Transport.URL, "wss://terminal.example.com")
		}
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := Load("/nonexistent/path/config.yaml")
		if err == nil {
			t.Fatal("expected error for nonexistent file")
		}
		if !strings.Contains(err.Error(), "read config file") {
			t.Errorf("error should mention 'read config file', got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		yaml := `
account:
  id: test
  invalid yaml here: [
`
		path := writeTempFile(t, yaml)

		_, err := Load(path)
		if err == nil {
			t.Fatal("expected error for invalid YAML")
		}
		if !strings.Contains(err.Error(), "parse config yaml") {
			t.Errorf("error should mention 'parse config yaml', got %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeTempFile(t, "")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Account.ID != "" {
			t.Errorf("Account.ID = %q, want empty", cfg.Account.ID)
		}
	})
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Run("single env var", func(t *testing.T) {
		t.Setenv("TEST_BRIDGE_TOKEN", "secret123")

		yaml := `
account:
  id: acc-1
  application: MetaApi
  token: ${TEST_BRIDGE_TOKEN}
`
		path := writeTempFile(t, yaml)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.Account.Token != "secret123" {
			t.Errorf("Account.Token = %q, want %q", cfg.Account.Token, "secret123")
		}
	})

	t.Run("multiple env vars", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "db.example.com")
		t.Setenv("TEST_DB_USER", "admin")
		t.Setenv("TEST_DB_PASS", "securepass")

		yaml := `
account:
  id: acc-1
  application: MetaApi
history:
  backend: postgres
  postgres:
    host: ${TEST_DB_HOST}
    name: bridge
    user: ${TEST_DB_USER}
    password: ${TEST_DB_PASS}
`
		path := writeTempFile(t, yaml)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.History.Postgres.Host != "db.example.com" {
			t.Errorf("Host = %q, want %q", cfg.History.Postgres.Host, "db.example.com")
		}
		if cfg.History.Postgres.User != "admin" {
			t.Errorf("User = %q, want %q", cfg.History.Postgres.User, "admin")
		}
		if cfg.History.Postgres.Password != "securepass" {
			t.Errorf("Password = %q, want %q", cfg.History.Postgres.Password, "securepass")
		}
	})

	t.Run("unset env var results in empty", func(t *testing.T) {
		os.Unsetenv("UNSET_VAR_FOR_TEST")

		yaml := `
account:
  id: ${UNSET_VAR_FOR_TEST}
`
		path := writeTempFile(t, yaml)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.Account.ID != "" {
			t.Errorf("Account.ID = %q, want empty for unset env var", cfg.Account.ID)
		}
	})
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
account:
  id: acc-1
  application: MetaApi
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Transport.URL != DefaultTransportURL {
		t.Errorf("Transport.URL = %q, want default %q", cfg.Transport.URL, DefaultTransportURL)
	}
	if cfg.Transport.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("Transport.HandshakeTimeout = %v, want default %v", cfg.Transport.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.Transport.CommandTimeout != DefaultCommandTimeout {
		t.Errorf("Transport.CommandTimeout = %v, want default %v", cfg.Transport.CommandTimeout, DefaultCommandTimeout)
	}
	if cfg.Transport.MaxRetries != DefaultMaxRetries {
		t.Errorf("Transport.MaxRetries = %d, want default %d", cfg.Transport.MaxRetries, DefaultMaxRetries)
	}
	if cfg.History.Backend != DefaultHistoryBackend {
		t.Errorf("History.Backend = %q, want default %q", cfg.History.Backend, DefaultHistoryBackend)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	if cfg.Logging.Level != DefaultLoggingLevel {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, DefaultLoggingLevel)
	}
	if cfg.Logging.Format != DefaultLoggingFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLoggingFormat)
	}
}

func TestLoadWithDefaultsAppliesPostgresDefaultsOnlyWhenSelected(t *testing.T) {
	yaml := `
account:
  id: acc-1
  application: MetaApi
history:
  backend: postgres
  postgres:
    host: dbhost
    name: bridge
    user: u
    password: p
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.History.Postgres.Port != DefaultDBPort {
		t.Errorf("History.Postgres.Port = %d, want default %d", cfg.History.Postgres.Port, DefaultDBPort)
	}
	if cfg.History.Postgres.MaxConns != DefaultMaxConns {
		t.Errorf("History.Postgres.MaxConns = %d, want default %d", cfg.History.Postgres.MaxConns, DefaultMaxConns)
	}

	memPath := writeTempFile(t, `
account:
  id: acc-1
  application: MetaApi
`)
	memCfg, err := LoadWithDefaults(memPath)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if memCfg.History.Postgres.Port != 0 {
		t.Errorf("History.Postgres.Port = %d with memory backend, want 0 (no postgres defaults)", memCfg.History.Postgres.Port)
	}
}

func TestLoadWithDefaultsPreservesSetValues(t *testing.T) {
	yaml := `
account:
  id: acc-1
  application: MetaApi
transport:
  url: wss://custom.example.com
  max_retries: 7
metrics:
  port: 8080
  path: /health
logging:
  level: debug
  format: text
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Transport.URL != "wss://custom.example.com" {
		t.Errorf("Transport.URL = %q, want %q", cfg.Transport.URL, "wss://custom.example.com")
	}
	if cfg.Transport.MaxRetries != 7 {
		t.Errorf("Transport.MaxRetries = %d, want 7", cfg.Transport.MaxRetries)
	}
	if cfg.Metrics.Port != 8080 {
		t.Errorf("Metrics.Port = %d, want 8080", cfg.Metrics.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadAndValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		yaml := `
account:
  id: acc-1
  application: MetaApi
`
		path := writeTempFile(t, yaml)

		if _, err := LoadAndValidate(path); err != nil {
			t.Fatalf("LoadAndValidate failed: %v", err)
		}
	})

	t.Run("missing account id fails", func(t *testing.T) {
		yaml := `
account:
  application: MetaApi
`
		path := writeTempFile(t, yaml)

		_, err := LoadAndValidate(path)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "account.id") {
			t.Errorf("error should mention account.id, got %v", err)
		}
	})

	t.Run("postgres backend requires connection fields", func(t *testing.T) {
		yaml := `
account:
  id: acc-1
  application: MetaApi
history:
  backend: postgres
`
		path := writeTempFile(t, yaml)

		_, err := LoadAndValidate(path)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "history.postgres") {
			t.Errorf("error should mention history.postgres, got %v", err)
		}
	})

	t.Run("unknown history backend fails", func(t *testing.T) {
		yaml := `
account:
  id: acc-1
  application: MetaApi
history:
  backend: sqlite
`
		path := writeTempFile(t, yaml)

		_, err := LoadAndValidate(path)
		if err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestValidateDBConnsOrdering(t *testing.T) {
	db := DBConfig{Host: "h", Name: "n", User: "u", Password: "p", MaxConns: 2, MinConns: 5}
	if err := db.validate("history.postgres"); err == nil {
		t.Fatal("expected error when min_conns exceeds max_conns")
	}
}

func TestDefaultConstants(t *testing.T) {
	if DefaultTransportURL == "" {
		t.Error("DefaultTransportURL must not be empty")
	}
	if DefaultHandshakeTimeout != 10*time.Second {
		t.Errorf("DefaultHandshakeTimeout = %v, want 10s", DefaultHandshakeTimeout)
	}
	if DefaultCommandTimeout != 30*time.Second {
		t.Errorf("DefaultCommandTimeout = %v, want 30s", DefaultCommandTimeout)
	}
	if DefaultMaxRetries != 3 {
		t.Errorf("DefaultMaxRetries = %d, want 3", DefaultMaxRetries)
	}
	if DefaultMetricsPort != 9090 {
		t.Errorf("DefaultMetricsPort = %d, want 9090", DefaultMetricsPort)
	}
	if DefaultMetricsPath != "/metrics" {
		t.Errorf("DefaultMetricsPath = %q, want '/metrics'", DefaultMetricsPath)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
