package notify

import (
	"context"
	"time"

	"github.com/edwinv/session-bot/pkg/utils"
)

// Sender транспорт доставки одного сообщения
type Sender interface {
	Send(chatID int64, text string) error
}

type message struct {
	chatID int64
	text   string
}

// Service асинхронная очередь уведомлений: отправка никогда не блокирует
// вызывающего и не возвращает ошибок. Сообщения доставляются воркером
// с ограниченным числом повторов; при переполнении очереди новые
// сообщения отбрасываются с записью в лог.
type Service struct {
	queue      chan message
	sender     Sender
	logger     *utils.Logger
	maxRetries int
	retryDelay time.Duration
	done       chan struct{}
}

// NewService создает сервис с очередью заданного размера
func NewService(sender Sender, logger *utils.Logger, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Service{
		queue:      make(chan message, queueSize),
		sender:     sender,
		logger:     logger,
		maxRetries: 3,
		retryDelay: 2 * time.Second,
		done:       make(chan struct{}),
	}
}

// Start запускает воркер доставки; блокирует до отмены контекста.
// После отмены очередь дочитывается, чтобы не потерять финальные отчеты.
func (s *Service) Start(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case msg := <-s.queue:
			s.deliver(msg)
		}
	}
}

// Wait блокирует до завершения воркера (после отмены контекста)
func (s *Service) Wait() {
	<-s.done
}

// Send ставит сообщение в очередь (fire-and-forget)
func (s *Service) Send(chatID int64, text string) {
	select {
	case s.queue <- message{chatID: chatID, text: text}:
	default:
		s.logger.Warn("Notification queue full, dropping message for chat %d", chatID)
	}
}

// deliver отправляет сообщение с повторами, после исчерпания — дроп
func (s *Service) deliver(msg message) {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err = s.sender.Send(msg.chatID, msg.text); err == nil {
			return
		}
		s.logger.Warn("Notification delivery attempt %d/%d failed for chat %d: %v",
			attempt, s.maxRetries, msg.chatID, err)
		if attempt < s.maxRetries {
			time.Sleep(s.retryDelay)
		}
	}
	s.logger.Error("Notification dropped for chat %d after %d attempts: %v", msg.chatID, s.maxRetries, err)
}

// drain доставляет оставшиеся сообщения без повторов
func (s *Service) drain() {
	for {
		select {
		case msg := <-s.queue:
			if err := s.sender.Send(msg.chatID, msg.text); err != nil {
				s.logger.Warn("Notification dropped on shutdown for chat %d: %v", msg.chatID, err)
			}
		default:
			return
		}
	}
}
