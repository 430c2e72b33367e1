package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maecare/airouter/src/cache"
	"github.com/maecare/airouter/src/config"
	"github.com/maecare/airouter/src/flags"
	"github.com/maecare/airouter/src/metrics"
	"github.com/maecare/airouter/src/store"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "airouter",
		Short: "Multi-provider AI routing service with response caching and A/B feature flags",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Missing .env is fine, the environment may already be set
			_ = godotenv.Load()

			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger = newLogger(cfg.Server.Mode)
			slog.SetDefault(logger)
			return nil
		},
		SilenceUsage: true,
		RunE:         runServe,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(mode string) *slog.Logger {
	if mode == "dev" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

// app holds the components shared by every command.
type app struct {
	db      *store.DB
	metrics *metrics.Exporter
	cache   *cache.ResponseCache
	flags   *flags.Service
}

func newApp(ctx context.Context) (*app, error) {
	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	logger.Info("database ready", "driver", db.Driver())

	exporter := metrics.NewExporter(metrics.DefaultConfig())

	return &app{
		db:      db,
		metrics: exporter,
		cache: cache.New(db, logger,
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithMetrics(exporter),
		),
		flags: flags.NewService(db, logger),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
