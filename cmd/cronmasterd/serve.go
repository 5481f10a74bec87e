package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/valkey-io/valkey-go"

	"github.com/cronmasterd/core/internal/config"
	"github.com/cronmasterd/core/internal/control"
	"github.com/cronmasterd/core/internal/dispatcher"
	"github.com/cronmasterd/core/internal/health"
	healthpgx "github.com/cronmasterd/core/internal/health/checks/pgx"
	healthvalkey "github.com/cronmasterd/core/internal/health/checks/valkey"
	"github.com/cronmasterd/core/internal/invoker"
	"github.com/cronmasterd/core/internal/logging"
	"github.com/cronmasterd/core/internal/otelx"
	"github.com/cronmasterd/core/internal/reconciler"
	"github.com/cronmasterd/core/internal/store"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler: arm active jobs, fire them on schedule, serve health/stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), resolved)
		},
	}
}

// runServe wires every long-running component in dependency order, starts
// them, and blocks until SIGINT/SIGTERM, then stops them in reverse order
// within the configured drain deadline.
func runServe(ctx context.Context, cfg config.Config) error {
	logCfg := logging.DefaultConfig()
	logger := logging.NewLogger(&logCfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("cronmasterd: connect to postgres: %w", err)
	}
	defer pool.Close()

	tp, err := otelx.Init(ctx, cfg.OTel, logger)
	if err != nil {
		return fmt.Errorf("cronmasterd: init tracing: %w", err)
	}
	defer func() { _ = otelx.Shutdown(context.Background(), tp) }()

	var repo store.Repository = store.NewPgxRepository(pool)
	var valkeyClient valkey.Client
	if cfg.Valkey.Addr != "" {
		valkeyClient, err = valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.Valkey.Addr}})
		if err != nil {
			return fmt.Errorf("cronmasterd: connect to valkey: %w", err)
		}
		defer valkeyClient.Close()
		repo = store.NewCachedRepository(repo, valkeyClient, cfg.Valkey.TTL)
		logger.Info("cache decorator enabled", slog.String("valkey_addr", cfg.Valkey.Addr))
	}

	inv := invoker.New(invoker.Config{
		Timeout:           cfg.Invoker.RequestTimeout(),
		ResponseBodyLimit: cfg.Invoker.ResponseBodyLimitBytes,
		UserAgent:         cfg.Invoker.UserAgent,
	}, tp)

	disp := dispatcher.New(repo, inv, logger, dispatcher.Config{MaxConcurrentFirings: cfg.Scheduler.MaxConcurrentFirings})
	recon := reconciler.New(repo, disp, logger, reconciler.Config{
		ReconcileInterval:  cfg.Scheduler.ReconcileInterval(),
		PruneInterval:      cfg.Scheduler.PruneInterval(),
		ExecutionRetention: cfg.Scheduler.ExecutionRetention(),
	})
	_ = control.New(repo, disp, recon) // exposed for a future API layer; serve itself only runs the scheduler

	if configPath != "" {
		err := config.Watch(configPath, func(reloaded config.Config) {
			inv.Reconfigure(invoker.Config{
				Timeout:           reloaded.Invoker.RequestTimeout(),
				ResponseBodyLimit: reloaded.Invoker.ResponseBodyLimitBytes,
				UserAgent:         reloaded.Invoker.UserAgent,
			})
			logger.Info("config reloaded", slog.String("user_agent", reloaded.Invoker.UserAgent))
		})
		if err != nil {
			logger.Warn("config hot-reload disabled", slog.String("path", configPath), slog.String("error", err.Error()))
		}
	}

	shutdownCheck := health.NewShutdownCheck()
	manager := health.NewManager()
	manager.AddCheck("postgres", healthpgx.New(healthpgx.Config{Pool: pool}))
	if valkeyClient != nil {
		manager.AddCheck("valkey", healthvalkey.New(healthvalkey.Config{Client: valkeyClient}))
	}
	manager.AddCheck("shutdown", shutdownCheck.Check)
	healthSrv := health.NewServer(cfg.Health, manager, recon, shutdownCheck, logger)

	starters := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"dispatcher", disp.OnStart},
		{"reconciler", recon.OnStart},
		{"health_server", healthSrv.OnStart},
	}
	for _, s := range starters {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("cronmasterd: start %s: %w", s.name, err)
		}
	}
	logger.Info("cronmasterd started", slog.String("postgres", "connected"), slog.Bool("cache_enabled", valkeyClient != nil))

	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownDrainDeadline())
	defer cancel()

	var stopErrs error
	stopErrs = errors.Join(stopErrs, healthSrv.OnStop(stopCtx))
	stopErrs = errors.Join(stopErrs, recon.OnStop(stopCtx))
	stopErrs = errors.Join(stopErrs, disp.OnStop(stopCtx))
	return stopErrs
}
