package domain

import "errors"

var (
	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfigured возвращается когда у пользователя нет настроенной сессии
	ErrNotConfigured = errors.New("session not configured")

	// ErrAlreadyRunning возвращается при попытке запустить вторую сессию
	ErrAlreadyRunning = errors.New("session already running")

	// ErrAuth возвращается когда биржа отклоняет API ключи
	ErrAuth = errors.New("exchange rejected credentials")

	// ErrExchangeAPI возвращается при ошибке API биржи
	ErrExchangeAPI = errors.New("exchange API error")

	// ErrInsufficientBalance возвращается при недостаточном балансе
	ErrInsufficientBalance = errors.New("insufficient balance")
)
