package main

import (
	"fmt"

	"log/slog"

	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/observability"
	redisAdapter "github.com/parleyhq/parley/pkg/adapters/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// loadConfig resolves configuration from the --config flag or environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// buildOrchestrator wires stores, metrics and the sweeper from config.
func buildOrchestrator(cfg config.Config, logger *slog.Logger) (*parley.Orchestrator, error) {
	opts := []parley.Option{
		parley.WithLogger(logger),
		parley.WithMetrics(observability.NewMetrics(cfg.MetricsNamespace)),
		parley.WithSweepInterval(cfg.SweepInterval),
		parley.WithAuditLimit(cfg.AuditLimit),
	}

	switch cfg.StoreBackend {
	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		sessionStore := redisAdapter.NewFromClient(client,
			redisAdapter.WithPrefix(cfg.RedisPrefix+"session:"),
			redisAdapter.WithTTL(cfg.RedisTTL),
		)
		opts = append(opts,
			parley.WithSessionStore(sessionStore),
			parley.WithApprovalStore(redisAdapter.NewApprovalStore(client, cfg.RedisPrefix+"approval:")),
			parley.WithAuditLog(redisAdapter.NewAuditLog(client, cfg.RedisPrefix+"audit:")),
			parley.WithLocker(redisAdapter.NewLocker(client, cfg.RedisPrefix)),
		)
	case "memory":
		// Defaults already in-memory.
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return parley.New(opts...), nil
}
