// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"petcare-billing/internal/config"
	"petcare-billing/internal/domain/ports/adapter"
	payAdapters "petcare-billing/internal/infra/adapters/payment"
	tele "petcare-billing/internal/infra/adapters/telegram"
	"petcare-billing/internal/infra/api"
	apiv1 "petcare-billing/internal/infra/api/apiv1"
	pg "petcare-billing/internal/infra/db/postgres"
	"petcare-billing/internal/infra/logging"
	"petcare-billing/internal/infra/metrics"
	red "petcare-billing/internal/infra/redis"
	"petcare-billing/internal/infra/sched"
	"petcare-billing/internal/infra/worker"
	"petcare-billing/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	profileRepo := pg.NewProfileRepo(pool, cfg.Database.QueryTimeout)
	recordRepo := pg.NewPaymentRecordRepo(pool, cfg.Database.QueryTimeout)

	// ---- Adapters ----
	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	// Alerts outlive the request context; the pool is drained on shutdown.
	alerts := worker.NewPool(cfg.Alerts.Workers, logger)
	alerts.Start(context.Background())
	defer alerts.Stop()

	// ---- Use cases ----
	orderUC := usecase.NewOrderUseCase(gateway, logger)
	ledgerUC := usecase.NewLedgerUseCase(recordRepo, logger)
	activationUC := usecase.NewActivationUseCase(profileRepo, tm, logger)
	workflowUC := usecase.NewWorkflowUseCase(
		gateway,
		ledgerUC,
		activationUC,
		red.NewLocker(redisClient),
		red.NewRateLimiter(redisClient),
		notifier,
		alerts,
		usecase.WorkflowConfig{
			FreeCurrency:   cfg.Payment.FreeCurrency,
			InFlightTTL:    cfg.Payment.InFlightTTL,
			FreeRateLimit:  cfg.Payment.FreeRateLimit,
			FreeRateWindow: cfg.Payment.FreeRateWindow,
			Dev:            cfg.Runtime.Dev,
		},
		logger,
	)

	// ---- Reconciler ----
	if cfg.Scheduler.ReconcileInterval > 0 {
		rec := sched.NewPaymentReconciler(workflowUC, ledgerUC, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileStale, logger)
		go func() { _ = rec.Run(ctx) }()
	} else {
		logger.Info().Msg("payment reconciler disabled")
	}

	// ---- HTTP ----
	v1 := apiv1.NewServer(
		orderUC,
		workflowUC,
		ledgerUC,
		apiv1.NewTokenAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		cfg.Admin.APIKey,
		logger,
	)
	router := api.NewRouter(v1, api.RouterConfig{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Checks: map[string]api.HealthCheck{
			"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
			"redis":    redisClient.Ping,
		},
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("gateway", gateway.Name()).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return nil
}

func newGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	gw := cfg.Payment.Gateway
	if cfg.Runtime.Dev && (gw.KeyID == "" || gw.KeySecret == "") {
		logger.Warn().Msg("gateway credentials missing; using noop gateway")
		secret := gw.KeySecret
		if secret == "" {
			secret = "dev-secret"
		}
		return payAdapters.NewNoopPaymentGateway(secret), nil
	}
	g, err := payAdapters.NewRazorpayGateway(gw.KeyID, gw.KeySecret, gw.BaseURL, gw.Timeout)
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}
	return g, nil
}

func newNotifier(cfg *config.Config, logger *zerolog.Logger) (adapter.AlertNotifier, error) {
	if cfg.Alerts.TelegramToken == "" || cfg.Alerts.TelegramChatID == 0 {
		logger.Warn().Msg("telegram alerts not configured; alerts are logged only")
		return tele.NewNoopAlertNotifier(logger), nil
	}
	n, err := tele.NewAlertNotifier(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID, logger)
	if err != nil {
		return nil, fmt.Errorf("telegram alerts: %w", err)
	}
	return n, nil
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}
