package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/edwinv/session-bot/internal/domain"
)

func TestStopLoss(t *testing.T) {
	tests := []struct {
		name        string
		entry       float64
		percent     float64
		wantTrigger float64
		wantLimit   float64
		wantErr     bool
	}{
		{"five percent", 100, 5, 95, 94.05, false},
		{"zero percent", 100, 0, 100, 99, false},
		{"small price", 0.000123, 10, 0.0001107, 0.00010959, false},
		{"zero entry", 0, 5, 0, 0, true},
		{"negative entry", -10, 5, 0, 0, true},
		{"negative percent", 100, -1, 0, 0, true},
		{"hundred percent", 100, 100, 0, 0, true},
	}

	calc := NewCalculator(DefaultLimitBuffer)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, limit, err := calc.StopLoss(tt.entry, tt.percent)
			if (err != nil) != tt.wantErr {
				t.Fatalf("StopLoss() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("StopLoss() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if trigger != tt.wantTrigger {
				t.Errorf("StopLoss() trigger = %v, want %v", trigger, tt.wantTrigger)
			}
			if limit != tt.wantLimit {
				t.Errorf("StopLoss() limit = %v, want %v", limit, tt.wantLimit)
			}
		})
	}
}

func TestTakeProfit(t *testing.T) {
	tests := []struct {
		name        string
		entry       float64
		percent     float64
		wantTrigger float64
		wantLimit   float64
		wantErr     bool
	}{
		{"ten percent", 100, 10, 110, 108.9, false},
		{"zero entry", 0, 10, 0, 0, true},
		{"negative percent", 100, -5, 0, 0, true},
	}

	calc := NewCalculator(DefaultLimitBuffer)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, limit, err := calc.TakeProfit(tt.entry, tt.percent)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TakeProfit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if trigger != tt.wantTrigger {
				t.Errorf("TakeProfit() trigger = %v, want %v", trigger, tt.wantTrigger)
			}
			if limit != tt.wantLimit {
				t.Errorf("TakeProfit() limit = %v, want %v", limit, tt.wantLimit)
			}
		})
	}
}

// Порядок уровней должен сохраняться для любых валидных входов:
// stopLimit < stopTrigger < entry < takeTrigger, takeLimit < takeTrigger.
func TestLevelOrdering(t *testing.T) {
	calc := NewCalculator(DefaultLimitBuffer)

	entries := []float64{0.00000123, 0.042, 1, 95.5, 68000}
	percents := []float64{0.5, 1, 5, 25, 99.9}

	for _, entry := range entries {
		for _, pct := range percents {
			levels, err := calc.Compute(entry, pct, pct)
			if err != nil {
				t.Fatalf("Compute(%v, %v) error = %v", entry, pct, err)
			}
			if !(levels.StopLimit < levels.StopTrigger) {
				t.Errorf("entry=%v pct=%v: stop limit %v >= trigger %v", entry, pct, levels.StopLimit, levels.StopTrigger)
			}
			if !(levels.StopTrigger < entry) {
				t.Errorf("entry=%v pct=%v: stop trigger %v >= entry", entry, pct, levels.StopTrigger)
			}
			if !(entry < levels.TakeTrigger) {
				t.Errorf("entry=%v pct=%v: take trigger %v <= entry", entry, pct, levels.TakeTrigger)
			}
			if !(levels.TakeLimit < levels.TakeTrigger) {
				t.Errorf("entry=%v pct=%v: take limit %v >= trigger %v", entry, pct, levels.TakeLimit, levels.TakeTrigger)
			}
		}
	}
}

func TestComputeSkipsTakeProfit(t *testing.T) {
	calc := NewCalculator(DefaultLimitBuffer)

	levels, err := calc.Compute(100, 5, 0)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if levels.TakeTrigger != 0 || levels.TakeLimit != 0 {
		t.Errorf("Compute() take levels = %v/%v, want skipped", levels.TakeTrigger, levels.TakeLimit)
	}
	if levels.StopTrigger != 95 || levels.StopLimit != 94.05 {
		t.Errorf("Compute() stop levels = %v/%v, want 95/94.05", levels.StopTrigger, levels.StopLimit)
	}
}

func TestRound8(t *testing.T) {
	got := round8(0.123456789123)
	if math.Abs(got-0.12345679) > 1e-12 {
		t.Errorf("round8() = %v, want 0.12345679", got)
	}
}

func TestNewCalculatorBufferFallback(t *testing.T) {
	for _, buffer := range []float64{0, -0.5, 1.5} {
		calc := NewCalculator(buffer)
		if calc.limitBuffer != DefaultLimitBuffer {
			t.Errorf("NewCalculator(%v) buffer = %v, want default", buffer, calc.limitBuffer)
		}
	}
}
