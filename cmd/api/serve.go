package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/auth"
	"github.com/bb-booking/beautyboosters/internal/events"
	"github.com/bb-booking/beautyboosters/internal/messaging/rabbitmq"
	"github.com/bb-booking/beautyboosters/internal/metrics"
	"github.com/bb-booking/beautyboosters/internal/notify"
	transporthttp "github.com/bb-booking/beautyboosters/internal/transport/http"
)

func newServeCmd() *cobra.Command {
	var (
		addr      string
		store     string
		migrate   bool
		sweep     bool
		readLimit time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reservation sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if store != "" {
				cfg.Store = store
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := openBackend(ctx, cfg, logger, migrate)
			if err != nil {
				return err
			}
			defer b.Close()

			collector := metrics.New()
			bus := events.NewBus()
			publishers := events.Multi{bus}
			if cfg.RabbitURL != "" {
				pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
				if err != nil {
					return err
				}
				defer pub.Close()
				publishers = append(publishers, pub)
				logger.Info("publishing lifecycle events", "exchange", cfg.RabbitExchange)
			} else {
				// Without a broker, notifications go out from this process.
				go notifyInProcess(ctx, bus, notify.New(notify.LogSender{Logger: logger}, logger), logger)
			}

			opts := append(engineOptions(cfg, logger), app.WithMetrics(collector), app.WithPublisher(publishers))
			engine := app.NewEngine(b.deps, opts...)

			if sweep {
				go func() {
					if err := engine.Sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("sweeper stopped", "err", err)
					}
				}()
			}

			handler := transporthttp.NewRouter(transporthttp.Services{
				Bookings:       engine.Bookings,
				Matching:       engine.Matching,
				Responses:      engine.Responses,
				Lifecycle:      engine.Lifecycle,
				Discounts:      engine.Discounts,
				Events:         bus,
				Auth:           auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
				Observer:       collector,
				MetricsHandler: collector.Handler(),
				Logger:         logger,
				CORSOrigins:    cfg.CORSOrigins,
			})

			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           handler,
				ReadHeaderTimeout: readLimit,
			}
			return runServer(ctx, server, cfg.ShutdownTimeout, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides HTTP_ADDR")
	cmd.Flags().StringVar(&store, "store", "", "storage backend (postgres or memory), overrides STORE")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply database migrations on startup")
	cmd.Flags().BoolVar(&sweep, "sweep", true, "run the reservation sweeper in this process")
	cmd.Flags().DurationVar(&readLimit, "read-header-timeout", 10*time.Second, "HTTP read header timeout")
	return cmd
}

func runServer(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	logger.Info("api listening", "addr", server.Addr)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func notifyInProcess(ctx context.Context, bus *events.Bus, n *notify.Notifier, logger *slog.Logger) {
	ch, unsubscribe := bus.Subscribe("")
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := n.Handle(ctx, ev); err != nil {
				logger.Warn("notify", "job_id", ev.JobID, "event", ev.Type, "err", err)
			}
		}
	}
}
