package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/edwinv/session-bot/internal/domain"
	"github.com/edwinv/session-bot/internal/engine"
	"github.com/edwinv/session-bot/internal/session"
	"github.com/edwinv/session-bot/pkg/utils"
)

// Bot фронтенд Telegram: принимает команды и проецирует их на реестр сессий.
// Каждый пользователь работает со своей сессией, идентификатор — Telegram ID.
type Bot struct {
	api      *tgbotapi.BotAPI
	registry *session.Registry
	notifier domain.Notifier
	auth     *AuthManager
	strategy engine.Config
	logger   *utils.Logger
}

// NewBot создает бота и авторизуется в Telegram
func NewBot(
	token string,
	registry *session.Registry,
	auth *AuthManager,
	strategy engine.Config,
	logger *utils.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram bot authorized: @%s", api.Self.UserName)

	return &Bot{
		api:      api,
		registry: registry,
		auth:     auth,
		strategy: strategy,
		logger:   logger,
	}, nil
}

// API возвращает низкоуровневого клиента (для транспорта уведомлений)
func (b *Bot) API() *tgbotapi.BotAPI {
	return b.api
}

// SetNotifier подключает сервис уведомлений после создания бота.
// Транспорт уведомлений использует клиента самого бота, поэтому
// связывание отложено до момента, когда оба объекта существуют.
func (b *Bot) SetNotifier(notifier domain.Notifier) {
	b.notifier = notifier
}

// Start запускает long-polling обработку команд; блокирует до отмены контекста
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает одно входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	if !b.auth.IsAllowed(userID) {
		b.logger.Warn("Unauthorized access attempt from user %d", userID)
		return
	}
	if !b.auth.Throttle(userID) {
		return
	}

	if !message.IsCommand() {
		b.reply(chatID, "Unknown input. Use /start to see available commands.")
		return
	}

	switch message.Command() {
	case "start", "help":
		b.sendHelp(chatID)

	case "setapikeys":
		b.handleSetAPIKeys(ctx, userID, chatID, message.CommandArguments())

	case "runbot":
		b.handleRunBot(userID, chatID)

	case "stopbot":
		b.handleStopBot(userID, chatID)

	case "status":
		b.handleStatus(userID, chatID)

	case "report":
		b.handleReport(userID, chatID)

	default:
		b.reply(chatID, "Unknown command. Use /start to see available commands.")
	}
}

// sendHelp отправляет справку по командам
func (b *Bot) sendHelp(chatID int64) {
	help := `🤖 Welcome to the Trading Bot!

Available commands:
/setapikeys <APIKEY> <SECRETKEY> - Configure your API keys
/runbot - Start a trading session
/stopbot - Stop the running session
/status - Show current session status
/report - Show the last 5 reports`
	b.reply(chatID, help)
}

// handleSetAPIKeys валидирует ключи и настраивает сессию пользователя
func (b *Bot) handleSetAPIKeys(ctx context.Context, userID, chatID int64, args string) {
	apiKey, apiSecret, err := ParseAPIKeys(args)
	if err != nil {
		b.reply(chatID, "❌ Usage: /setapikeys <APIKEY> <SECRETKEY>")
		return
	}

	b.reply(chatID, "🔄 Verifying API keys...")

	balance, err := b.registry.CreateOrUpdate(ctx, userID, chatID, apiKey, apiSecret)
	switch {
	case err == nil:
		b.reply(chatID, fmt.Sprintf(
			"✅ API keys configured\n💰 %s balance: %.2f\n🚀 Use /runbot to start trading",
			b.strategy.QuoteAsset, balance))

	case errors.Is(err, domain.ErrAlreadyRunning):
		b.reply(chatID, "⚠️ A session is already running. Use /stopbot first.")

	case errors.Is(err, domain.ErrAuth):
		b.reply(chatID, "❌ Exchange rejected your API keys\n"+
			"⚠️ Make sure that:\n"+
			"1. The keys are correct\n"+
			"2. Spot trading permission is enabled\n"+
			"3. Your IP is allowed in the exchange API settings")

	default:
		b.reply(chatID, fmt.Sprintf("❌ Could not reach the exchange: %v\nTry again later.", err))
	}
}

// handleRunBot запускает торговую сессию пользователя в отдельной горутине
func (b *Bot) handleRunBot(userID, chatID int64) {
	sess, ctx, err := b.registry.BeginRun(userID)
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		b.reply(chatID, "❌ Configure your keys first with /setapikeys")
		return
	case errors.Is(err, domain.ErrAlreadyRunning):
		b.reply(chatID, "⚠️ The bot is already running.")
		return
	case err != nil:
		b.reply(chatID, fmt.Sprintf("❌ Could not start session: %v", err))
		return
	}

	eng := engine.New(sess, b.strategy, b.notifier, b.logger)
	go eng.Run(ctx)

	b.reply(chatID, fmt.Sprintf("🚀 Bot started for %s (%s). Use /status to follow progress.",
		strings.Join(b.strategy.Pairs, ", "), b.strategy.SessionDuration))
}

// handleStopBot запрашивает кооперативную остановку сессии
func (b *Bot) handleStopBot(userID, chatID int64) {
	if b.registry.Stop(userID) {
		b.reply(chatID, "🛑 Stop requested. The session will finish the current pair and report.")
		return
	}
	b.reply(chatID, "⚠️ No running session to stop.")
}

// handleStatus показывает статус и историю отчетов
func (b *Bot) handleStatus(userID, chatID int64) {
	snap, ok := b.registry.Get(userID)
	if !ok {
		b.reply(chatID, "❌ You have not configured your keys yet. Use /setapikeys.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Status: %s\n", snap.Status)
	if snap.Status == domain.SessionRunning {
		fmt.Fprintf(&sb, "⏱ Started: %s\n", snap.StartedAt.Format("15:04:05"))
	}
	sb.WriteString("\n📝 Recent reports:\n")
	sb.WriteString(formatReports(snap.Reports))

	b.reply(chatID, sb.String())
}

// handleReport показывает последние отчеты сессии
func (b *Bot) handleReport(userID, chatID int64) {
	reports, err := b.registry.RecentReports(userID, domain.ReportHistoryLimit)
	if err != nil {
		b.reply(chatID, "❌ No data to show. Use /setapikeys first.")
		return
	}

	b.reply(chatID, "📝 Last reports:\n"+formatReports(reports))
}

// formatReports печатает отчеты, новые первыми
func formatReports(reports []domain.Report) string {
	if len(reports) == 0 {
		return "No reports available."
	}

	lines := make([]string, 0, len(reports))
	for _, report := range reports {
		lines = append(lines, fmt.Sprintf("%s - %s", report.At.Format("15:04:05"), report.Message))
	}
	return strings.Join(lines, "\n")
}

// reply отправляет ответ напрямую в чат команды
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send telegram message: %v", err)
	}
}
