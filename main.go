package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucabenedettini/pypi-monitor-aws-bot/bot"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/config"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/notify"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/pypi"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/scheduler"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/storage"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/sweep"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "modernc.org/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logFatal("config load failed", err)
	}

	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("config_loaded")

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		logFatal("open database", err)
	}
	db.SetMaxOpenConns(1)

	store := storage.New(db)
	if err := store.Migrate(context.Background()); err != nil {
		logFatal("migrate database", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logFatal("create telegram bot", err)
	}

	sender := bot.NewTelegramSender(api)
	httpClient := &http.Client{Timeout: time.Duration(cfg.FetchTimeoutSec) * time.Second}
	resolver := pypi.NewClientWithBaseURL(httpClient, cfg.PyPIBaseURL)

	notifier := &notify.Notifier{Storage: store, Sender: sender, Logger: logger}
	runner := &sweep.Runner{
		Storage:  store,
		Resolver: resolver,
		Notifier: notifier,
		Logger:   logger,
	}

	interval := time.Duration(cfg.SweepIntervalSec) * time.Second
	delay := time.Duration(cfg.InitialDelaySec) * time.Second
	sched, err := scheduler.New(interval, delay, func() {
		if err := runner.Run(context.Background()); err != nil {
			logger.Warn("scheduled_sweep_failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		logFatal("init scheduler", err)
	}
	sched.Start()
	logger.Info("scheduler_started", slog.Duration("interval", interval), slog.Duration("initial_delay", delay))

	handler := bot.New(sender, store, resolver, logger, time.Duration(cfg.ReplyTimeoutSec)*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := api.GetUpdatesChan(updateCfg)

	go func() {
		for update := range updates {
			handler.HandleUpdate(ctx, update)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown")

	api.StopReceivingUpdates()
	sched.Stop()
	if err := db.Close(); err != nil {
		logger.Warn("db_close_failed", slog.String("error", err.Error()))
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

func logFatal(msg string, err error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
