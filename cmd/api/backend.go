package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/clock"
	"github.com/bb-booking/beautyboosters/internal/config"
	omisepay "github.com/bb-booking/beautyboosters/internal/payment/omise"
	"github.com/bb-booking/beautyboosters/internal/payment/sandbox"
	"github.com/bb-booking/beautyboosters/internal/seed"
	"github.com/bb-booking/beautyboosters/internal/storage/memory"
	"github.com/bb-booking/beautyboosters/internal/storage/postgres"
	"github.com/bb-booking/beautyboosters/migrations"
)

const startupTimeout = 5 * time.Second

// backend is the storage and payment wiring shared by the subcommands.
type backend struct {
	deps   app.Deps
	writer app.DirectoryWriter
	pool   *pgxpool.Pool
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, envPath, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger(os.Stderr)
	if envPath != "" {
		logger.Info("loaded env file", "path", envPath)
	}
	return cfg, logger, nil
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// openBackend builds the repositories for cfg.Store. The memory store is
// seeded with the bundled fixture so a fresh process has boosters to match.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger, migrate bool) (*backend, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	b := &backend{}
	switch cfg.Store {
	case config.StoreMemory:
		store := memory.New()
		fx, err := seed.Default()
		if err != nil {
			return nil, err
		}
		summary, err := seed.Apply(ctx, store, fx)
		if err != nil {
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
		logger.Warn("using in-memory store, data is lost on exit",
			"boosters", summary.Boosters,
			"discounts", summary.Discounts,
		)
		b.deps = app.Deps{Jobs: store, Boosters: store, Payments: store, Discounts: store}
		b.writer = store
	default:
		pool, err := openPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := migrations.Apply(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		store := postgres.NewStore(pool)
		b.deps = app.Deps{Jobs: store.Jobs, Boosters: store.Boosters, Payments: store.Payments, Discounts: store.Discounts}
		b.writer = store
		b.pool = pool
	}
	b.deps.Provider = provider
	b.deps.Clock = clock.NewSystem()
	return b, nil
}

func newProvider(cfg config.Config) (app.PaymentProvider, error) {
	if cfg.PaymentProvider != config.ProviderOmise {
		return sandbox.New(), nil
	}
	client, err := omisepay.NewClient(cfg.OmisePublicKey, cfg.OmiseSecretKey)
	if err != nil {
		return nil, fmt.Errorf("omise client: %w", err)
	}
	return omisepay.New(client), nil
}

func engineOptions(cfg config.Config, logger *slog.Logger) []app.EngineOption {
	return []app.EngineOption{
		app.WithLogger(logger),
		app.WithReservationTTL(cfg.ReservationTTL),
		app.WithRejectionPenaltyStep(cfg.RejectionPenaltyStep),
		app.WithBoosterShare(cfg.BoosterShareBP),
		app.WithSweepInterval(cfg.SweepInterval),
		app.WithSweepBatch(cfg.SweepBatch),
		app.WithDefaultCurrency(cfg.DefaultCurrency),
	}
}
