// Package main is the entry point for the development bot poller.
//
// Production deployments receive chat updates over the webhook mounted on the
// notifyd admin server. Local development has no public URL, so this binary
// consumes updates via long polling instead. It deletes any registered
// webhook first; the Bot API rejects getUpdates while a webhook is active.
// Run exactly one poller per bot token.
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

	"github.com/adekerz/FreshTrack-sub004/internal/bot"
	"github.com/adekerz/FreshTrack-sub004/internal/config"
	"github.com/adekerz/FreshTrack-sub004/internal/db"
	"github.com/adekerz/FreshTrack-sub004/internal/external"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

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

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if !cfg.Telegram.Enabled() {
		return errors.New("TELEGRAM_BOT_TOKEN must be set for the poller")
	}

	logger := &slogAdapter{logger: slog.New(slog.NewJSONHandler(os.Stdout, nil))}
	logger.Info("bot poller starting", "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	// Long polling needs a client timeout above the poll timeout.
	httpClient := &http.Client{Timeout: 60 * time.Second}
	telegram := external.NewTelegramClient(httpClient, external.TelegramClientConfig{
		BotToken: cfg.Telegram.BotToken,
		BaseURL:  cfg.Telegram.APIBaseURL,
	})
	if err := telegram.DeleteWebhook(ctx); err != nil {
		logger.Warn("webhook deletion failed, polling may conflict", "error", err.Error())
	}

	router := bot.NewRouter(
		db.NewBindingRepository(pool),
		db.NewDirectoryRepository(pool),
		telegram,
		logger.With("component", "bot"),
	)

	err = bot.NewPoller(telegram, router, logger.With("component", "poller")).Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("bot poller stopped")
		return nil
	}
	return err
}
