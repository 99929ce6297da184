// Command bridgeclient is a thin demo binary wiring the transport,
// connection facade, and config packages into one running process: one
// account, one WebSocket connection, metrics and a health log line.
//
// Grounded on the teacher's cmd/gatherer/main.go: flag-parsed config
// path, slog logger, signal-driven context cancellation, optional
// Prometheus HTTP endpoint, graceful shutdown in reverse wiring order.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bridge-sync-core/internal/bridgeconn"
	"github.com/rickgao/bridge-sync-core/internal/config"
	"github.com/rickgao/bridge-sync-core/internal/database"
	"github.com/rickgao/bridge-sync-core/internal/history"
	"github.com/rickgao/bridge-sync-core/internal/transport"
	"github.com/rickgao/bridge-sync-core/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/bridgeclient.local.yaml", "path to config file")
	flag.Parse()

	logger := newLogger(config.LoggingConfig{})
	slog.SetDefault(logger)

	logger.Info("starting bridgeclient",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		"account_id", cfg.Account.ID,
		"application", cfg.Account.Application,
		"transport_url", cfg.Transport.URL,
	)

	var historyStartTime time.Time
	if cfg.Account.HistoryStartTime != "" {
		historyStartTime, err = time.Parse(time.RFC3339, cfg.Account.HistoryStartTime)
		if err != nil {
			logger.Error("invalid account.history_start_time", "value", cfg.Account.HistoryStartTime, "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	registerer := prometheus.NewRegistry()

	connOpts := []bridgeconn.Option{bridgeconn.WithMetricsRegisterer(registerer)}
	if cfg.History.Backend == "postgres" {
		pool, err := database.Connect(ctx, cfg.History.Postgres)
		if err != nil {
			logger.Error("failed to connect history database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		connOpts = append(connOpts, bridgeconn.WithHistoryStorage(history.NewSQLStorage(pool, cfg.Account.ID)))
	}

	wsTransport := transport.NewWSTransport(transport.WSConfig{
		URL:              cfg.Transport.URL,
		AuthToken:        cfg.Account.Token,
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		CommandTimeout:   cfg.Transport.CommandTimeout,
	}, logger.With("component", "transport"))

	conn := bridgeconn.New(bridgeconn.Config{
		AccountID:        cfg.Account.ID,
		Application:      cfg.Account.Application,
		HistoryStartTime: historyStartTime,
	}, wsTransport, logger.With("component", "bridgeconn"), connOpts...)

	if err := conn.Initialize(ctx); err != nil {
		logger.Error("failed to initialize connection", "error", err)
		os.Exit(1)
	}
	defer conn.Close(context.Background())

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		dialer, ok := wsTransport.(interface{ Connect(context.Context) error })
		if !ok {
			return fmt.Errorf("transport does not support Connect")
		}
		if err := dialer.Connect(groupCtx); err != nil {
			return fmt.Errorf("connect transport: %w", err)
		}
		<-groupCtx.Done()
		return nil
	})

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}

		group.Go(func() error {
			logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				status := conn.HealthStatus()
				logger.Info("health status",
					"connected", status.Connected,
					"synchronized", status.Synchronized,
					"message", status.Message,
				)
			}
		}
	})

	logger.Info("bridgeclient running", "account_id", cfg.Account.ID)

	if err := group.Wait(); err != nil {
		logger.Error("bridgeclient stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("bridgeclient stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Level != "" {
		_ = level.UnmarshalText([]byte(cfg.Level)) // unknown names keep info
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
