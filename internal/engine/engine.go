package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edwinv/session-bot/internal/domain"
	"github.com/edwinv/session-bot/internal/risk"
	"github.com/edwinv/session-bot/internal/session"
	"github.com/edwinv/session-bot/pkg/utils"
)

// Config параметры торговой сессии, фиксированные на деплой
type Config struct {
	Pairs             []string
	QuoteAsset        string
	OrderQuantity     float64
	SessionDuration   time.Duration
	MinQuoteBalance   float64
	SettleDelay       time.Duration
	PairDelay         time.Duration
	StopLossPercent   float64 // 0 выключает защитные ордера
	TakeProfitPercent float64 // 0 пропускает take-profit
	KeepPosition      bool    // не продавать по рынку, позицию закрывают защитные ордера
	LimitBuffer       float64
}

// Engine выполняет ограниченный по времени торговый цикл одной сессии
type Engine struct {
	session  *session.Session
	exchange domain.Exchange
	cfg      Config
	calc     risk.Calculator
	notifier domain.Notifier
	logger   *utils.Logger
}

// New создает движок для сессии. Клиент биржи берется из самой сессии.
func New(sess *session.Session, cfg Config, notifier domain.Notifier, logger *utils.Logger) *Engine {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = domain.DefaultQuoteAsset
	}
	return &Engine{
		session:  sess,
		exchange: sess.Exchange(),
		cfg:      cfg,
		calc:     risk.NewCalculator(cfg.LimitBuffer),
		notifier: notifier,
		logger:   logger,
	}
}

// Run выполняет торговый цикл до истечения бюджета времени или отмены.
// Любая паника переводит сессию в FAILED, итоговый отчет отправляется
// в обоих случаях best-effort.
func (e *Engine) Run(ctx context.Context) {
	start := time.Now()
	totals := newRunTotals()
	status := domain.SessionFinished

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Trading session for user %d panicked: %v", e.session.UserID(), r)
			status = domain.SessionFailed
			e.session.Record(fmt.Sprintf("❌ Session aborted: internal error (%v)", r))
		}
		// отчет встает в очередь до Finish: терминальный переход
		// сигнализирует реестру, что движку больше нечего отправлять
		e.notifier.Send(e.session.ChatID(), e.buildSummary(totals, time.Since(start), status))
		e.session.Finish(status)
		e.logger.Info("Trading session for user %d ended with status %s", e.session.UserID(), status)
	}()

	if len(e.cfg.Pairs) == 0 {
		e.logger.Warn("Trading session for user %d has no pairs configured", e.session.UserID())
		e.session.Record("❌ No trading pairs configured")
		return
	}

	e.logger.Info("Trading session started for user %d: %d pairs, qty %v, duration %s",
		e.session.UserID(), len(e.cfg.Pairs), e.cfg.OrderQuantity, e.cfg.SessionDuration)

	for e.keepGoing(ctx, start) {
		for _, pair := range e.cfg.Pairs {
			if !e.keepGoing(ctx, start) {
				break
			}
			e.tradePair(ctx, pair, totals)

			if !sleepCtx(ctx, e.cfg.PairDelay) {
				break
			}
		}
	}
}

// keepGoing кооперативная проверка: бюджет времени, отмена и стоп-флаг сессии
func (e *Engine) keepGoing(ctx context.Context, start time.Time) bool {
	if ctx.Err() != nil {
		return false
	}
	if !e.session.IsRunning() {
		return false
	}
	return time.Since(start) < e.cfg.SessionDuration
}

// tradePair выполняет один цикл покупка/продажа по паре.
// Любая ошибка записывается в отчеты и не фатальна для сессии.
func (e *Engine) tradePair(ctx context.Context, pair string, totals *runTotals) {
	quote, err := e.exchange.GetBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		totals.failed++
		e.session.Record(fmt.Sprintf("❌ Balance check failed for %s: %v", pair, err))
		return
	}

	if quote < e.cfg.MinQuoteBalance {
		totals.skipped++
		e.session.Record(fmt.Sprintf("❌ Insufficient %s balance for %s (%.2f < %.2f)",
			e.cfg.QuoteAsset, pair, quote, e.cfg.MinQuoteBalance))
		return
	}

	buy, err := e.exchange.MarketBuy(ctx, pair, e.cfg.OrderQuantity)
	if err != nil {
		totals.failed++
		e.session.Record(fmt.Sprintf("❌ Buy failed on %s: %v", pair, err))
		return
	}

	totals.bought += buy.Price * e.cfg.OrderQuantity
	totals.lastPrice[pair] = buy.Price

	if e.cfg.StopLossPercent > 0 {
		e.placeProtection(ctx, pair, totals)
	}

	if e.cfg.KeepPosition && e.cfg.StopLossPercent > 0 {
		totals.completed++
		e.session.Record(fmt.Sprintf("✅ Bought %s at %.8f, position protected", pair, buy.Price))
		return
	}

	if !sleepCtx(ctx, e.cfg.SettleDelay) {
		return
	}

	sell, err := e.exchange.MarketSell(ctx, pair, e.cfg.OrderQuantity)
	if err != nil {
		totals.failed++
		e.session.Record(fmt.Sprintf("⚠️ Sell failed on %s, position left open: %v", pair, err))
		return
	}

	totals.sold += sell.Price * e.cfg.OrderQuantity
	totals.lastPrice[pair] = sell.Price
	totals.completed++
	e.session.Record(fmt.Sprintf("✅ Trade completed on %s: buy %.8f / sell %.8f",
		pair, buy.Price, sell.Price))
}

// placeProtection ставит stop-loss (и take-profit) после исполненной покупки.
// Ошибки размещения отчитываются, купленная позиция не разворачивается.
func (e *Engine) placeProtection(ctx context.Context, pair string, totals *runTotals) {
	price, err := e.exchange.GetPrice(ctx, pair)
	if err != nil {
		e.session.Record(fmt.Sprintf("⚠️ Protective orders skipped for %s: %v", pair, err))
		return
	}

	levels, err := e.calc.Compute(price, e.cfg.StopLossPercent, e.cfg.TakeProfitPercent)
	if err != nil {
		e.session.Record(fmt.Sprintf("⚠️ Protective levels invalid for %s: %v", pair, err))
		return
	}

	if _, err := e.exchange.PlaceConditionalSell(ctx, pair, e.cfg.OrderQuantity,
		levels.StopTrigger, levels.StopLimit, domain.OrderKindStopLoss); err != nil {
		e.session.Record(fmt.Sprintf("⚠️ Stop-loss placement failed for %s: %v", pair, err))
	} else {
		e.session.Record(fmt.Sprintf("🛡 Stop-loss for %s: trigger %.8f, limit %.8f",
			pair, levels.StopTrigger, levels.StopLimit))
	}

	if levels.TakeTrigger == 0 {
		return
	}

	if _, err := e.exchange.PlaceConditionalSell(ctx, pair, e.cfg.OrderQuantity,
		levels.TakeTrigger, levels.TakeLimit, domain.OrderKindTakeProfit); err != nil {
		e.session.Record(fmt.Sprintf("⚠️ Take-profit placement failed for %s: %v", pair, err))
	} else {
		e.session.Record(fmt.Sprintf("🎯 Take-profit for %s: trigger %.8f, limit %.8f",
			pair, levels.TakeTrigger, levels.TakeLimit))
	}
}

// baseAsset выделяет базовый актив из символа пары
func (e *Engine) baseAsset(pair string) string {
	return strings.TrimSuffix(pair, e.cfg.QuoteAsset)
}

// sleepCtx ждет d или отмену; false если контекст отменен
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
