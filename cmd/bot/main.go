package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/edwinv/session-bot/internal/api"
	"github.com/edwinv/session-bot/internal/config"
	"github.com/edwinv/session-bot/internal/engine"
	"github.com/edwinv/session-bot/internal/exchange"
	"github.com/edwinv/session-bot/internal/notify"
	"github.com/edwinv/session-bot/internal/session"
	"github.com/edwinv/session-bot/internal/telegram"
	"github.com/edwinv/session-bot/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting session bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Общий кэш цен, питается websocket стримом miniTicker
	prices := exchange.NewPriceCache()
	stream := exchange.NewTickerStream(cfg.Binance.WSBaseURL, cfg.Strategy.Pairs, prices,
		logger.WithComponent("stream"))
	go stream.Run(ctx)

	// Каждая сессия получает своего клиента биржи со своими ключами
	factory := exchange.NewFactory(cfg.Binance.BaseURL, prices)
	registry := session.NewRegistry(factory, logger.WithComponent("session"))

	auth := telegram.NewAuthManager(cfg.Telegram.AllowedUsers)

	bot, err := telegram.NewBot(
		cfg.Telegram.BotToken,
		registry,
		auth,
		strategyConfig(cfg),
		logger.WithComponent("telegram"),
	)
	if err != nil {
		log.Fatalf("Failed to create telegram bot: %v", err)
	}

	// Уведомления идут через клиента самого бота, связывание отложенное.
	// У воркера доставки свой контекст: он должен пережить сигнал и
	// остановиться только после того, как движки отчитаются.
	notifier := notify.NewService(
		notify.NewTelegramSender(bot.API()),
		logger.WithComponent("notify"),
		64,
	)
	bot.SetNotifier(notifier)
	notifyCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()
	go notifier.Start(notifyCtx)

	server := api.NewServer(logger.WithComponent("api"), registry, cfg.HTTPPort)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed: %v", err)
		}
	}()

	go bot.Start(ctx)

	logger.Info("Bot is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	logger.Info("Shutting down...")
	registry.StopAll()
	// движки дорабатывают текущую пару и ставят итоговые отчеты в очередь
	registry.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown: %v", err)
	}

	// останавливаем доставку только после движков и дожидаемся очереди
	stopNotifier()
	notifier.Wait()
	logger.Info("Goodbye")
}

// strategyConfig переносит параметры стратегии в конфиг движка
func strategyConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Pairs:             cfg.Strategy.Pairs,
		QuoteAsset:        cfg.Strategy.QuoteAsset,
		OrderQuantity:     cfg.Strategy.OrderQuantity,
		SessionDuration:   cfg.Strategy.SessionDuration,
		MinQuoteBalance:   cfg.Strategy.MinQuoteBalance,
		SettleDelay:       cfg.Strategy.SettleDelay,
		PairDelay:         cfg.Strategy.PairDelay,
		StopLossPercent:   cfg.Strategy.StopLossPercent,
		TakeProfitPercent: cfg.Strategy.TakeProfitPercent,
		KeepPosition:      cfg.Strategy.KeepPosition,
		LimitBuffer:       cfg.Strategy.LimitBuffer,
	}
}
