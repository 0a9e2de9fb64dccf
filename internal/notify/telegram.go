package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLength лимит Telegram на длину одного сообщения
const maxMessageLength = 4096

// TelegramSender доставляет уведомления через Telegram Bot API
type TelegramSender struct {
	api *tgbotapi.BotAPI
}

// NewTelegramSender создает отправителя поверх существующего бота
func NewTelegramSender(api *tgbotapi.BotAPI) *TelegramSender {
	return &TelegramSender{api: api}
}

// Send отправляет текст, разбивая длинные сообщения на части
func (t *TelegramSender) Send(chatID int64, text string) error {
	for _, part := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, part)
		if _, err := t.api.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
	}
	return nil
}

// splitMessage разбивает длинное сообщение по строкам
func splitMessage(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var messages []string
	current := ""

	for _, line := range strings.Split(text, "\n") {
		if len(current)+len(line)+1 > maxLength {
			messages = append(messages, current)
			current = line
		} else {
			if current != "" {
				current += "\n"
			}
			current += line
		}
	}

	if current != "" {
		messages = append(messages, current)
	}
	return messages
}
