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

	"santabot/backend/internal/api/handler"
	"santabot/backend/internal/bootstrap"
	"santabot/backend/internal/config"
	"santabot/backend/internal/localization"
	"santabot/backend/internal/logging"
	"santabot/backend/internal/registration"
	"santabot/backend/internal/santa"
	"santabot/backend/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	logging.Setup(cfg.LogLevel)
	slog.Info("starting Secret Santa bot", "storage", cfg.StorageDriver, "lang", cfg.DefaultLanguage)

	if cfg.BotToken == "" {
		fatal("TELEGRAM_BOT_TOKEN is not set", errors.New("missing token"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Stores
	store, err := bootstrap.OpenStore(cfg)
	if err != nil {
		fatal("failed to open store", err)
	}
	defer store.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		fatal("failed to connect redis", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	sessions, locker := bootstrap.Coordination(cfg, rdb)

	localizer, err := localization.Default()
	if err != nil {
		fatal("failed to create localizer", err)
	}

	// 2. Telegram
	bot, err := telegram.Connect(cfg.BotToken)
	if err != nil {
		fatal("failed to start telegram bot", err)
	}
	client := telegram.NewClient(bot)
	machine := registration.NewMachine(sessions, store, locker, santa.NewEngine(nil), client, localizer, cfg.DefaultLanguage)
	botService := telegram.NewBotService(client, machine, bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "my_chat_member"}
	updates := bot.GetUpdatesChan(u)

	// 3. Admin API
	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        handler.NewRouter(handler.NewHandler(store, machine, cfg.AdminJWTSecret)),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		slog.Info("admin API listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin API stopped", "error", err)
			stop()
		}
	}()

	botService.Run(ctx, updates)

	bot.StopReceivingUpdates()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin API shutdown", "error", err)
	}
	slog.Info("bye")
}
