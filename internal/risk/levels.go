package risk

import (
	"fmt"
	"math"

	"github.com/edwinv/session-bot/internal/domain"
)

// DefaultLimitBuffer множитель лимитной цены относительно триггера.
// Лимит чуть ниже триггера повышает вероятность исполнения sell-стопа.
const DefaultLimitBuffer = 0.99

// Levels рассчитанные защитные уровни для входа по цене Entry
type Levels struct {
	Entry       float64
	StopTrigger float64
	StopLimit   float64
	TakeTrigger float64 // 0 если take-profit не настроен
	TakeLimit   float64 // 0 если take-profit не настроен
}

// Calculator чистый калькулятор stop-loss/take-profit уровней
type Calculator struct {
	limitBuffer float64
}

// NewCalculator создает калькулятор с заданным буфером лимитной цены.
// Буфер вне (0, 1] заменяется на DefaultLimitBuffer.
func NewCalculator(limitBuffer float64) Calculator {
	if limitBuffer <= 0 || limitBuffer > 1 {
		limitBuffer = DefaultLimitBuffer
	}
	return Calculator{limitBuffer: limitBuffer}
}

// StopLoss возвращает триггерную и лимитную цену stop-loss ордера
func (c Calculator) StopLoss(entryPrice, stopLossPercent float64) (trigger, limit float64, err error) {
	if err := validate(entryPrice, stopLossPercent); err != nil {
		return 0, 0, err
	}
	trigger = round8(entryPrice * (1 - stopLossPercent/100))
	limit = round8(trigger * c.limitBuffer)
	return trigger, limit, nil
}

// TakeProfit возвращает триггерную и лимитную цену take-profit ордера
func (c Calculator) TakeProfit(entryPrice, takeProfitPercent float64) (trigger, limit float64, err error) {
	if err := validate(entryPrice, takeProfitPercent); err != nil {
		return 0, 0, err
	}
	trigger = round8(entryPrice * (1 + takeProfitPercent/100))
	limit = round8(trigger * c.limitBuffer)
	return trigger, limit, nil
}

// Compute рассчитывает полный набор уровней для входа.
// takeProfitPercent == 0 означает, что take-profit не настроен и пропускается.
func (c Calculator) Compute(entryPrice, stopLossPercent, takeProfitPercent float64) (Levels, error) {
	stopTrigger, stopLimit, err := c.StopLoss(entryPrice, stopLossPercent)
	if err != nil {
		return Levels{}, err
	}

	levels := Levels{
		Entry:       entryPrice,
		StopTrigger: stopTrigger,
		StopLimit:   stopLimit,
	}

	if takeProfitPercent == 0 {
		return levels, nil
	}

	takeTrigger, takeLimit, err := c.TakeProfit(entryPrice, takeProfitPercent)
	if err != nil {
		return Levels{}, err
	}
	levels.TakeTrigger = takeTrigger
	levels.TakeLimit = takeLimit
	return levels, nil
}

func validate(entryPrice, percent float64) error {
	if entryPrice <= 0 {
		return fmt.Errorf("%w: entry price must be positive, got %v", domain.ErrInvalidInput, entryPrice)
	}
	if percent < 0 || percent >= 100 {
		return fmt.Errorf("%w: percent must be in [0, 100), got %v", domain.ErrInvalidInput, percent)
	}
	return nil
}

// round8 округляет до 8 знаков (тик-сайз конвенция биржи)
func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
