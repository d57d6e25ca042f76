package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/auth"
	"github.com/bb-booking/beautyboosters/internal/config"
	"github.com/bb-booking/beautyboosters/internal/domain"
	"github.com/bb-booking/beautyboosters/internal/messaging/rabbitmq"
	"github.com/bb-booking/beautyboosters/internal/notify"
	"github.com/bb-booking/beautyboosters/internal/seed"
	"github.com/bb-booking/beautyboosters/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := openPool(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			pending, err := migrations.Pending(cmd.Context(), pool)
			if err != nil {
				return err
			}
			if err := migrations.Apply(cmd.Context(), pool); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("migrations applied", "count", len(pending))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations that have not been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := openPool(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			pending, err := migrations.Pending(cmd.Context(), pool)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "up to date")
				return nil
			}
			for _, name := range pending {
				fmt.Fprintln(out, "pending", name)
			}
			return nil
		},
	})
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue reservations and retry stranded releases once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer b.Close()

			engine := app.NewEngine(b.deps, engineOptions(cfg, logger)...)
			report, err := engine.Sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "jobs=%d expired=%d replacements=%d escalated=%d released=%d\n",
				report.Jobs, report.Expired, report.Replacements, report.Escalated, report.Released)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load boosters, calendar blocks and discount codes into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("seed writes to postgres; the memory store seeds itself on startup")
			}

			fx, err := seed.Default()
			if file != "" {
				fx, err = seed.LoadFile(file)
			}
			if err != nil {
				return err
			}

			b, err := openBackend(cmd.Context(), cfg, logger, true)
			if err != nil {
				return err
			}
			defer b.Close()

			summary, err := seed.Apply(cmd.Context(), b.writer, fx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "boosters=%d unavailability=%d discounts=%d\n",
				summary.Boosters, summary.Unavailability, summary.Discounts)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML fixture to load instead of the bundled one")
	return cmd
}

func newNotifyCmd() *cobra.Command {
	var bindings []string

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Consume lifecycle events from RabbitMQ and send notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.RabbitURL == "" {
				return errors.New("RABBIT_URL is required for the notify worker")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
				URL:      cfg.RabbitURL,
				Exchange: cfg.RabbitExchange,
				Queue:    cfg.NotifyQueue,
				Bindings: bindings,
			}, logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			logger.Info("notify worker started", "queue", cfg.NotifyQueue)
			n := notify.New(notify.LogSender{Logger: logger}, logger)
			return consumer.Run(ctx, n.Handle)
		},
	}

	cmd.Flags().StringSliceVar(&bindings, "bind", []string{"job.*"}, "routing key patterns to consume")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		id   string
		role string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
			raw, err := tokens.Mint(domain.Actor{ID: id, Role: domain.Role(role)})
			if err != nil {
				return fmt.Errorf("mint token for %s %q: %w", role, id, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "subject id, e.g. cus_1 or bst_anna")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "customer, booster or admin")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

