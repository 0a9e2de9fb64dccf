package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/edwinv/session-bot/internal/domain"
	"github.com/edwinv/session-bot/pkg/utils"
)

// Registry процессный реестр сессий, единственный разделяемый ресурс.
// Блокировка реестра защищает только карту; состояние каждой сессии
// защищено её собственным мьютексом, независимо от других пользователей.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	factory  domain.ExchangeFactory
	logger   *utils.Logger
	engines  sync.WaitGroup
}

// NewRegistry создает пустой реестр сессий
func NewRegistry(factory domain.ExchangeFactory, logger *utils.Logger) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		factory:  factory,
		logger:   logger,
	}
}

// CreateOrUpdate валидирует ключи через биржу и создает (или перезаписывает)
// сессию пользователя в статусе READY. При ошибке валидации прежнее состояние
// не меняется. Возвращает свободный баланс котируемого актива для отчета.
func (r *Registry) CreateOrUpdate(ctx context.Context, userID, chatID int64, apiKey, apiSecret string) (float64, error) {
	if apiKey == "" || apiSecret == "" {
		return 0, fmt.Errorf("%w: api key and secret are required", domain.ErrInvalidInput)
	}

	ex := r.factory(apiKey, apiSecret)
	if err := ex.ValidateCredentials(ctx); err != nil {
		r.logger.Warn("Credential validation failed for user %d: %v", userID, err)
		return 0, err
	}

	balance, err := ex.GetBalance(ctx, domain.DefaultQuoteAsset)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[userID]
	if ok && existing.IsRunning() {
		return 0, domain.ErrAlreadyRunning
	}

	r.sessions[userID] = &Session{
		userID:   userID,
		chatID:   chatID,
		creds:    domain.Credentials{APIKey: apiKey, APISecret: apiSecret},
		exchange: ex,
		status:   domain.SessionReady,
	}

	r.logger.Info("Session configured for user %d", userID)
	return balance, nil
}

// Get возвращает снапшот сессии пользователя
func (r *Registry) Get(userID int64) (Snapshot, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[userID]
	r.mu.RUnlock()

	if !ok {
		return Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// BeginRun атомарно переводит сессию пользователя в RUNNING и возвращает
// хендл для движка. Повторный вызов для той же сессии до завершения
// возвращает ErrAlreadyRunning; без настроенных ключей — ErrNotConfigured.
// Переход выполняется под блокировкой реестра: CreateOrUpdate не может
// подменить запись между чтением и beginRun, запущенная сессия всегда
// остается достижимой через Get/Stop.
func (r *Registry) BeginRun(userID int64) (*Session, context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[userID]
	if !ok {
		return nil, nil, domain.ErrNotConfigured
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.engines.Add(1)
	if err := sess.beginRun(cancel, r.engines.Done); err != nil {
		r.engines.Done()
		cancel()
		return nil, nil, err
	}

	r.logger.Info("Session started for user %d", userID)
	return sess, ctx, nil
}

// Stop запрашивает кооперативную остановку сессии пользователя.
// Уже выполняющийся вызов биржи не прерывается, но следующая пара
// обрабатываться не будет.
func (r *Registry) Stop(userID int64) bool {
	r.mu.RLock()
	sess, ok := r.sessions[userID]
	r.mu.RUnlock()

	if !ok || !sess.IsRunning() {
		return false
	}
	sess.stop()
	return true
}

// StopAll останавливает все выполняющиеся сессии (graceful shutdown)
func (r *Registry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, sess := range r.sessions {
		if sess.IsRunning() {
			r.logger.Info("Stopping session for user %d", id)
			sess.stop()
		}
	}
}

// Wait блокирует до завершения всех запущенных движков.
// Вызывается при остановке процесса после StopAll, чтобы финальные
// отчеты успели попасть в очередь уведомлений.
func (r *Registry) Wait() {
	r.engines.Wait()
}

// RecentReports возвращает до n последних отчетов, новые первыми
func (r *Registry) RecentReports(userID int64, n int) ([]domain.Report, error) {
	snap, ok := r.Get(userID)
	if !ok {
		return nil, domain.ErrNotConfigured
	}

	if n <= 0 || n > domain.ReportHistoryLimit {
		n = domain.ReportHistoryLimit
	}
	if n > len(snap.Reports) {
		n = len(snap.Reports)
	}
	return snap.Reports[:n], nil
}

// GetStatus возвращает статус сессии пользователя
func (r *Registry) GetStatus(userID int64) (string, error) {
	snap, ok := r.Get(userID)
	if !ok {
		return domain.SessionUnconfigured, domain.ErrNotConfigured
	}
	return snap.Status, nil
}
