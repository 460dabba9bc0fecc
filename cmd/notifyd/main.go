// Package main is the entry point for the FreshTrack notification daemon.
//
// It loads configuration, connects the database pool, wires the rule engine,
// delivery worker, report aggregator, and scheduler, and serves the admin
// trigger surface (with the chat webhook mounted when a bot token is
// configured). Shutdown is handled via OS signal interception (SIGINT,
// SIGTERM) and drains the HTTP server and scheduler gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/adekerz/FreshTrack-sub004/internal/api"
	"github.com/adekerz/FreshTrack-sub004/internal/bot"
	"github.com/adekerz/FreshTrack-sub004/internal/config"
	"github.com/adekerz/FreshTrack-sub004/internal/db"
	"github.com/adekerz/FreshTrack-sub004/internal/delivery"
	"github.com/adekerz/FreshTrack-sub004/internal/engine"
	"github.com/adekerz/FreshTrack-sub004/internal/external"
	"github.com/adekerz/FreshTrack-sub004/internal/reports"
	"github.com/adekerz/FreshTrack-sub004/internal/scheduler"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error, and Warn directly but With returns
// *slog.Logger, not types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	slogger := newLogger(cfg.LogLevel)
	logger := &slogAdapter{logger: slogger}
	logger.Info("notifyd starting",
		"environment", cfg.Environment,
		"admin_port", cfg.Admin.Port,
		"telegram_enabled", cfg.Telegram.Enabled(),
		"mail_enabled", cfg.Mail.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	// Repositories.
	ruleRepo := db.NewRuleRepository(pool)
	notifRepo := db.NewNotificationRepository(pool)
	bindingRepo := db.NewBindingRepository(pool)
	inventory := db.NewInventoryReader(pool)
	recipientRepo := db.NewRecipientRepository(pool)
	directoryRepo := db.NewDirectoryRepository(pool)
	settingsRepo := db.NewSettingsRepository(pool)

	// External gateways.
	httpClient := &http.Client{Timeout: 30 * time.Second}
	telegram := external.NewTelegramClient(httpClient, external.TelegramClientConfig{
		BotToken: cfg.Telegram.BotToken,
		BaseURL:  cfg.Telegram.APIBaseURL,
	})
	mail := external.NewMailClient(httpClient, external.MailClientConfig{
		APIKey:   cfg.Mail.APIKey,
		Domain:   cfg.Mail.Domain,
		BaseURL:  cfg.Mail.APIBaseURL,
		FromAddr: cfg.Mail.FromAddr,
		FromName: cfg.Mail.FromName,
	})

	clock := types.RealClock{}

	// Scheduler first: it owns timezone resolution for the engine and
	// reports. Its job hooks are filled in below.
	sched := scheduler.NewService(scheduler.ServiceConfig{
		Settings:       settingsRepo,
		PrimaryHotelID: cfg.Notify.PrimaryHotelID,
		Clock:          clock,
		Logger:         logger.With("component", "scheduler"),
	})

	evaluator := engine.NewEvaluator(engine.EvaluatorConfig{
		Rules:      ruleRepo,
		Batches:    inventory,
		Recipients: recipientRepo,
		Store:      notifRepo,
		Dedup:      engine.NewDeduplicator(notifRepo, clock),
		Bindings:   bindingRepo,
		Chat:       telegram,
		Locations:  sched,
		Clock:      clock,
		Logger:     logger.With("component", "engine"),
	})

	worker := delivery.NewWorker(delivery.WorkerConfig{
		Queue:      notifRepo,
		Batches:    inventory,
		Recipients: recipientRepo,
		Dispatcher: delivery.NewDispatcher(
			delivery.AppChannel{},
			delivery.NewChatChannel(telegram),
			delivery.NewEmailChannel(mail),
		),
		Policy:          delivery.DefaultRetryPolicy(),
		BatchSize:       cfg.Worker.SweepBatchSize,
		DispatchTimeout: cfg.Worker.DispatchTimeout,
		Clock:           clock,
		Logger:          logger.With("component", "delivery"),
	})

	aggregator := reports.NewAggregator(reports.AggregatorConfig{
		Health:    inventory,
		Bindings:  bindingRepo,
		Inboxes:   directoryRepo,
		Settings:  settingsRepo,
		Chat:      telegram,
		Mail:      mail,
		Locations: sched,
		Clock:     clock,
		Logger:    logger.With("component", "reports"),
	})

	sched.SetJobs(evaluator, worker, aggregator)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Chat webhook, mounted only when a bot token exists.
	var webhook http.Handler
	if cfg.Telegram.Enabled() {
		router := bot.NewRouter(bindingRepo, directoryRepo, telegram, logger.With("component", "bot"))
		webhook = bot.NewWebhook(router, cfg.Telegram.WebhookSecret, logger.With("component", "webhook"))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Admin.Port,
		Handler:           api.NewServer(sched, notifRepo, webhook, logger.With("component", "api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("admin server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("notifyd stopped")
	return nil
}

// newPool creates the pgx connection pool with the configured tuning.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pc.MaxConns = int32(cfg.Database.MaxConns)
	pc.MinConns = int32(cfg.Database.MinConns)
	pc.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// newLogger creates a structured JSON slog.Logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
