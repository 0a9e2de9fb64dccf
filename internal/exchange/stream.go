package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edwinv/session-bot/pkg/utils"
)

// DefaultWSBaseURL боевой websocket endpoint Binance Spot
const DefaultWSBaseURL = "wss://stream.binance.com:9443"

// priceTTL срок годности закэшированной цены
const priceTTL = 30 * time.Second

// PriceCache потокобезопасный кэш последних известных цен
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]cachedPrice
}

type cachedPrice struct {
	price float64
	at    time.Time
}

// NewPriceCache создает пустой кэш цен
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]cachedPrice)}
}

// Get возвращает цену символа, если она еще свежая
func (c *PriceCache) Get(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.prices[symbol]
	if !ok || time.Since(entry.at) > priceTTL {
		return 0, false
	}
	return entry.price, true
}

// Set сохраняет цену символа
func (c *PriceCache) Set(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = cachedPrice{price: price, at: time.Now()}
}

// TickerStream подписка на miniTicker стримы Binance, питающая кэш цен.
// Соединение переподключается с бэкоффом до отмены контекста.
type TickerStream struct {
	wsBaseURL string
	symbols   []string
	cache     *PriceCache
	logger    *utils.Logger
}

type miniTickerEvent struct {
	Data struct {
		Symbol    string `json:"s"`
		LastPrice string `json:"c"`
	} `json:"data"`
}

// NewTickerStream создает стрим для списка символов
func NewTickerStream(wsBaseURL string, symbols []string, cache *PriceCache, logger *utils.Logger) *TickerStream {
	if wsBaseURL == "" {
		wsBaseURL = DefaultWSBaseURL
	}
	return &TickerStream{
		wsBaseURL: wsBaseURL,
		symbols:   symbols,
		cache:     cache,
		logger:    logger,
	}
}

// Run держит соединение открытым до отмены контекста
func (s *TickerStream) Run(ctx context.Context) {
	if len(s.symbols) == 0 {
		return
	}

	backoff := time.Second
	for ctx.Err() == nil {
		if err := s.consume(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("Ticker stream disconnected: %v, reconnecting in %s", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// consume читает события одного соединения до ошибки или отмены
func (s *TickerStream) consume(ctx context.Context) error {
	streams := make([]string, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		streams = append(streams, strings.ToLower(symbol)+"@miniTicker")
	}
	endpoint := fmt.Sprintf("%s/stream?streams=%s", s.wsBaseURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.logger.Info("Ticker stream connected for %d symbols", len(s.symbols))

	// закрываем соединение при отмене, чтобы разблокировать ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event miniTickerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.Data.Symbol == "" || event.Data.LastPrice == "" {
			continue
		}

		price, err := strconv.ParseFloat(event.Data.LastPrice, 64)
		if err != nil {
			continue
		}
		s.cache.Set(event.Data.Symbol, price)
	}
}
