package session

import (
	"context"
	"sync"
	"time"

	"github.com/edwinv/session-bot/internal/domain"
)

// Session состояние торговой сессии одного пользователя.
// Пока сессия в статусе RUNNING, мутации выполняет только её движок;
// снапшоты безопасно читать из любых горутин.
type Session struct {
	mu sync.Mutex

	userID   int64
	chatID   int64
	creds    domain.Credentials
	exchange domain.Exchange

	status     string
	lastReport string
	reports    []domain.Report
	startedAt  time.Time

	cancel context.CancelFunc
	done   func()
}

// Snapshot read-only проекция состояния сессии
type Snapshot struct {
	UserID     int64
	ChatID     int64
	Status     string
	LastReport string
	Reports    []domain.Report
	StartedAt  time.Time
}

// UserID возвращает идентификатор владельца сессии
func (s *Session) UserID() int64 {
	return s.userID
}

// ChatID возвращает чат для доставки отчетов
func (s *Session) ChatID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Exchange возвращает клиента биржи, созданного под ключи пользователя
func (s *Session) Exchange() domain.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchange
}

// Status возвращает текущий статус сессии
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsRunning сообщает, выполняется ли сессия (кооперативный стоп-флаг движка)
func (s *Session) IsRunning() bool {
	return s.Status() == domain.SessionRunning
}

// StartedAt возвращает момент перехода в RUNNING
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Record добавляет отчет в начало истории и обновляет lastReport.
// История ограничена domain.ReportHistoryLimit, вытеснение с конца.
func (s *Session) Record(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastReport = message
	s.reports = append([]domain.Report{{At: time.Now(), Message: message}}, s.reports...)
	if len(s.reports) > domain.ReportHistoryLimit {
		s.reports = s.reports[:domain.ReportHistoryLimit]
	}
}

// Finish переводит сессию в терминальный статус FINISHED или FAILED
// и сигнализирует реестру о завершении движка
func (s *Session) Finish(status string) {
	s.mu.Lock()

	if status != domain.SessionFinished && status != domain.SessionFailed {
		status = domain.SessionFailed
	}
	s.status = status
	s.cancel = nil
	done := s.done
	s.done = nil
	s.mu.Unlock()

	if done != nil {
		done()
	}
}

// Snapshot возвращает консистентную копию состояния
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := make([]domain.Report, len(s.reports))
	copy(reports, s.reports)

	return Snapshot{
		UserID:     s.userID,
		ChatID:     s.chatID,
		Status:     s.status,
		LastReport: s.lastReport,
		Reports:    reports,
		StartedAt:  s.startedAt,
	}
}

// beginRun атомарно переводит сессию в RUNNING.
// Хендл отмены сохраняется, чтобы реестр мог остановить движок;
// done вызывается ровно один раз при терминальном переходе.
func (s *Session) beginRun(cancel context.CancelFunc, done func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionRunning {
		return domain.ErrAlreadyRunning
	}
	if s.creds.APIKey == "" || s.creds.APISecret == "" {
		return domain.ErrNotConfigured
	}

	s.status = domain.SessionRunning
	s.startedAt = time.Now()
	s.cancel = cancel
	s.done = done
	return nil
}

// stop дергает кооперативную отмену, если движок выполняется
func (s *Session) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
