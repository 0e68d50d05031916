// Command seed fills the products table with a demo catalog.
//
//	POSTGRES_HOST=localhost SEED_PRODUCTS=1000 go run ./cmd/seed
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/storefront/internal/seed"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/logger"
)

type seedConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	Products  int    `env:"SEED_PRODUCTS" envDefault:"100"`
	BatchSize int    `env:"SEED_BATCH_SIZE" envDefault:"500"`
	Seed      uint64 `env:"SEED_RANDOM" envDefault:"20240301"`
}

func main() {
	var cfg seedConfig
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("storefront-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}, log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	start := time.Now()
	products := seed.Generate(cfg.Products, cfg.Seed, start.UTC())
	n, err := seed.Insert(ctx, pool, products, cfg.BatchSize, log)
	if err != nil {
		log.Error("seeding failed", slog.String("error", err.Error()), slog.Int64("inserted", n))
		os.Exit(1)
	}

	log.Info("catalog seeded",
		slog.Int("generated", len(products)),
		slog.Int64("inserted", n),
		slog.Duration("took", time.Since(start)),
	)
}
