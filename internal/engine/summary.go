package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/edwinv/session-bot/internal/domain"
)

// runTotals накопленные итоги одной сессии
type runTotals struct {
	bought    float64 // суммарный notional покупок
	sold      float64 // суммарный notional продаж
	completed int
	failed    int
	skipped   int
	lastPrice map[string]float64 // последняя известная цена по паре
}

func newRunTotals() *runTotals {
	return &runTotals{lastPrice: make(map[string]float64)}
}

// buildSummary собирает итоговый отчет сессии. Нулевые итоги валидны:
// сессия без единой сделки все равно отчитывается полностью.
func (e *Engine) buildSummary(totals *runTotals, elapsed time.Duration, status string) string {
	gain := totals.sold - totals.bought

	head := "📊 TRADING SESSION REPORT"
	if status == domain.SessionFailed {
		head = "📊 TRADING SESSION REPORT (aborted)"
	}

	summary := fmt.Sprintf(
		"%s\n\n"+
			"💸 Total bought: $%.2f\n"+
			"💰 Total sold: $%.2f\n"+
			"📈 Net gain: $%.2f\n"+
			"✅ Completed: %d  ❌ Failed: %d  ⏭ Skipped: %d\n"+
			"⏱ Duration: %s\n",
		head, totals.bought, totals.sold, gain,
		totals.completed, totals.failed, totals.skipped,
		elapsed.Round(time.Second),
	)

	if value, ok := e.estimatePortfolioValue(totals); ok {
		summary += fmt.Sprintf("💼 Estimated total value: $%.2f\n", value)
	}

	summary += fmt.Sprintf("🕒 %s", time.Now().Format("2006-01-02 15:04:05"))
	return summary
}

// estimatePortfolioValue оценивает портфель в котируемом активе:
// свободный баланс котировки плюс остатки базовых активов по последней
// известной цене. Ошибки не фатальны, оценка best-effort.
func (e *Engine) estimatePortfolioValue(totals *runTotals) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	value, err := e.exchange.GetBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		e.logger.Warn("Portfolio estimate: %s balance unavailable: %v", e.cfg.QuoteAsset, err)
		return 0, false
	}

	for _, pair := range e.cfg.Pairs {
		base := e.baseAsset(pair)
		if base == "" || base == e.cfg.QuoteAsset {
			continue
		}

		balance, err := e.exchange.GetBalance(ctx, base)
		if err != nil || balance == 0 {
			continue
		}

		price, ok := totals.lastPrice[pair]
		if !ok {
			price, err = e.exchange.GetPrice(ctx, pair)
			if err != nil {
				continue
			}
		}
		value += balance * price
	}

	return value, true
}
