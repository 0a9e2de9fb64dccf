package domain

import (
	"context"
	"time"
)

// Credentials хранит пару API ключей пользователя
type Credentials struct {
	APIKey    string
	APISecret string
}

// OrderFill описывает исполненный рыночный ордер
type OrderFill struct {
	OrderID  string
	Symbol   string
	Side     string
	Price    float64
	Quantity float64
	At       time.Time
}

// Report одна запись истории отчетов сессии
type Report struct {
	At      time.Time
	Message string
}

// Exchange интерфейс биржи, с которой работает движок сессии.
// Все вызовы синхронные, таймаут ограничен самим клиентом.
type Exchange interface {
	ValidateCredentials(ctx context.Context) error
	GetBalance(ctx context.Context, asset string) (float64, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
	MarketBuy(ctx context.Context, symbol string, quantity float64) (*OrderFill, error)
	MarketSell(ctx context.Context, symbol string, quantity float64) (*OrderFill, error)
	PlaceConditionalSell(ctx context.Context, symbol string, quantity, triggerPrice, limitPrice float64, kind string) (string, error)
}

// ExchangeFactory создает клиента биржи под ключи конкретного пользователя
type ExchangeFactory func(apiKey, apiSecret string) Exchange

// Notifier интерфейс доставки отчетов пользователю (best-effort)
type Notifier interface {
	Send(chatID int64, text string)
}
