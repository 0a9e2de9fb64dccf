package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/edwinv/session-bot/pkg/utils"
)

// Config содержит все настройки приложения
type Config struct {
	Telegram TelegramConfig
	Binance  BinanceConfig
	Strategy StrategyConfig
	HTTPPort int
	LogLevel string
}

type TelegramConfig struct {
	BotToken     string
	AllowedUsers string // ID через запятую, пусто = все
}

type BinanceConfig struct {
	BaseURL   string
	WSBaseURL string
}

// StrategyConfig параметры торговой сессии
type StrategyConfig struct {
	Pairs             []string
	QuoteAsset        string
	OrderQuantity     float64
	SessionDuration   time.Duration
	MinQuoteBalance   float64
	SettleDelay       time.Duration
	PairDelay         time.Duration
	StopLossPercent   float64
	TakeProfitPercent float64
	KeepPosition      bool
	LimitBuffer       float64
}

// rawStrategy YAML представление стратегии; длительности заданы строками
// вида "5m", "2s" и парсятся отдельно
type rawStrategy struct {
	Pairs             []string `yaml:"pairs"`
	QuoteAsset        string   `yaml:"quote_asset"`
	OrderQuantity     *float64 `yaml:"order_quantity"`
	SessionDuration   string   `yaml:"session_duration"`
	MinQuoteBalance   *float64 `yaml:"min_quote_balance"`
	SettleDelay       string   `yaml:"settle_delay"`
	PairDelay         string   `yaml:"pair_delay"`
	StopLossPercent   float64  `yaml:"stop_loss_percent"`
	TakeProfitPercent float64  `yaml:"take_profit_percent"`
	KeepPosition      bool     `yaml:"keep_position"`
	LimitBuffer       *float64 `yaml:"limit_buffer"`
}

// Load загружает конфигурацию из .env и файла стратегии
func Load() (*Config, error) {
	// .env опционален, обычные переменные окружения имеют приоритет
	if err := godotenv.Load(); err != nil {
		utils.LogWarn(".env file not found, using environment variables")
	}

	httpPort, err := strconv.Atoi(getEnv("HTTP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_PORT: %w", err)
	}

	strategy, err := loadStrategy(getEnv("STRATEGY_CONFIG", "configs/strategy.yaml"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Telegram: TelegramConfig{
			BotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
			AllowedUsers: getEnv("TELEGRAM_ALLOWED_USERS", ""),
		},
		Binance: BinanceConfig{
			BaseURL:   getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
			WSBaseURL: getEnv("BINANCE_WS_BASE_URL", "wss://stream.binance.com:9443"),
		},
		Strategy: strategy,
		HTTPPort: httpPort,
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadStrategy читает YAML файл стратегии; отсутствующий файл дает дефолты
func loadStrategy(path string) (StrategyConfig, error) {
	strategy := defaultStrategy()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			utils.LogInfo(fmt.Sprintf("Strategy file %s not found, using defaults", path))
			return strategy, nil
		}
		return StrategyConfig{}, fmt.Errorf("failed to read strategy file: %w", err)
	}

	var raw rawStrategy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return StrategyConfig{}, fmt.Errorf("failed to parse strategy file: %w", err)
	}
	if err := raw.apply(&strategy); err != nil {
		return StrategyConfig{}, err
	}

	if err := strategy.validate(); err != nil {
		return StrategyConfig{}, err
	}
	return strategy, nil
}

// apply накладывает заданные в YAML поля поверх дефолтов
func (r rawStrategy) apply(s *StrategyConfig) error {
	if len(r.Pairs) > 0 {
		s.Pairs = r.Pairs
	}
	if r.QuoteAsset != "" {
		s.QuoteAsset = r.QuoteAsset
	}
	if r.OrderQuantity != nil {
		s.OrderQuantity = *r.OrderQuantity
	}
	if r.MinQuoteBalance != nil {
		s.MinQuoteBalance = *r.MinQuoteBalance
	}
	if r.LimitBuffer != nil {
		s.LimitBuffer = *r.LimitBuffer
	}
	s.StopLossPercent = r.StopLossPercent
	s.TakeProfitPercent = r.TakeProfitPercent
	s.KeepPosition = r.KeepPosition

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{r.SessionDuration, "session_duration", &s.SessionDuration},
		{r.SettleDelay, "settle_delay", &s.SettleDelay},
		{r.PairDelay, "pair_delay", &s.PairDelay},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("strategy: invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

// defaultStrategy исторические параметры деплоя
func defaultStrategy() StrategyConfig {
	return StrategyConfig{
		Pairs:           []string{"DOGEUSDT", "WIFUSDT", "PEPEUSDT", "FLOKIUSDT", "SHIBUSDT"},
		QuoteAsset:      "USDT",
		OrderQuantity:   1,
		SessionDuration: 5 * time.Minute,
		MinQuoteBalance: 15,
		SettleDelay:     2 * time.Second,
		PairDelay:       2 * time.Second,
		LimitBuffer:     0.99,
	}
}

func (s StrategyConfig) validate() error {
	if len(s.Pairs) == 0 {
		return fmt.Errorf("strategy: pairs list is empty")
	}
	if s.OrderQuantity <= 0 {
		return fmt.Errorf("strategy: order_quantity must be positive")
	}
	if s.SessionDuration <= 0 {
		return fmt.Errorf("strategy: session_duration must be positive")
	}
	if s.StopLossPercent < 0 || s.StopLossPercent >= 100 {
		return fmt.Errorf("strategy: stop_loss_percent must be in [0, 100)")
	}
	if s.TakeProfitPercent < 0 || s.TakeProfitPercent >= 100 {
		return fmt.Errorf("strategy: take_profit_percent must be in [0, 100)")
	}
	if s.KeepPosition && s.StopLossPercent == 0 {
		return fmt.Errorf("strategy: keep_position requires stop_loss_percent")
	}
	return nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
