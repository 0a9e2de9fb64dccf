package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/edwinv/session-bot/internal/domain"
)

// DefaultBaseURL боевой REST endpoint Binance Spot
const DefaultBaseURL = "https://api.binance.com"

// Коды ошибок Binance, различаемые клиентом
const (
	codeInvalidAPIKey       = -2015 // ключ/права/IP
	codeBadAPIKeyFormat     = -2014
	codeUnauthorizedReq     = -1022 // подпись не сошлась
	codeInsufficientBalance = -2010 // ордер отклонен: не хватает баланса
)

// Client REST клиент Binance Spot под ключи одного пользователя.
// Все запросы проходят через общий rate limiter и ограничены таймаутом.
type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	prices    *PriceCache // общий кэш цен, может быть nil
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type accountResponse struct {
	AccountType string `json:"accountType"`
	Balances    []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	Fills         []struct {
		Price string `json:"price"`
		Qty   string `json:"qty"`
	} `json:"fills"`
}

// NewClient создает клиента под ключи пользователя
func NewClient(apiKey, apiSecret, baseURL string, prices *PriceCache) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		prices:    prices,
	}
}

// NewFactory возвращает фабрику клиентов с общим кэшем цен
func NewFactory(baseURL string, prices *PriceCache) domain.ExchangeFactory {
	return func(apiKey, apiSecret string) domain.Exchange {
		return NewClient(apiKey, apiSecret, baseURL, prices)
	}
}

// ValidateCredentials проверяет ключи запросом информации об аккаунте
func (c *Client) ValidateCredentials(ctx context.Context) error {
	var account accountResponse
	if err := c.signedRequest(ctx, http.MethodGet, "/api/v3/account", nil, &account); err != nil {
		return err
	}
	return nil
}

// GetBalance возвращает свободный баланс актива
func (c *Client) GetBalance(ctx context.Context, asset string) (float64, error) {
	var account accountResponse
	if err := c.signedRequest(ctx, http.MethodGet, "/api/v3/account", nil, &account); err != nil {
		return 0, err
	}

	for _, b := range account.Balances {
		if b.Asset != asset {
			continue
		}
		if b.Free == "" {
			return 0, nil
		}
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse balance for %s: %w", asset, err)
		}
		return free, nil
	}

	return 0, nil
}

// GetPrice возвращает текущую цену символа, предпочитая свежий кэш стрима
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if c.prices != nil {
		if price, ok := c.prices.Get(symbol); ok {
			return price, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	var ticker tickerResponse
	if err := c.do(req, &ticker); err != nil {
		return 0, err
	}

	if ticker.Price == "" {
		return 0, fmt.Errorf("%w: no price data for symbol %s", domain.ErrExchangeAPI, symbol)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
	}

	if c.prices != nil {
		c.prices.Set(symbol, price)
	}
	return price, nil
}

// MarketBuy размещает рыночную покупку и возвращает цену исполнения
func (c *Client) MarketBuy(ctx context.Context, symbol string, quantity float64) (*domain.OrderFill, error) {
	return c.marketOrder(ctx, symbol, domain.SideBuy, quantity)
}

// MarketSell размещает рыночную продажу и возвращает цену исполнения
func (c *Client) MarketSell(ctx context.Context, symbol string, quantity float64) (*domain.OrderFill, error) {
	return c.marketOrder(ctx, symbol, domain.SideSell, quantity)
}

func (c *Client) marketOrder(ctx context.Context, symbol, side string, quantity float64) (*domain.OrderFill, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", domain.OrderTypeMarket)
	params.Set("quantity", formatQty(quantity))
	params.Set("newClientOrderId", uuid.NewString())

	var order orderResponse
	if err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", params, &order); err != nil {
		return nil, err
	}

	price, qty := avgFillPrice(order)

	return &domain.OrderFill{
		OrderID:  strconv.FormatInt(order.OrderID, 10),
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Quantity: qty,
		At:       time.Now(),
	}, nil
}

// PlaceConditionalSell ставит отложенный sell: STOP_LOSS_LIMIT или
// TAKE_PROFIT_LIMIT с лимитной ценой ниже триггера
func (c *Client) PlaceConditionalSell(ctx context.Context, symbol string, quantity, triggerPrice, limitPrice float64, kind string) (string, error) {
	orderType := domain.OrderTypeStopLossLimit
	if kind == domain.OrderKindTakeProfit {
		orderType = domain.OrderTypeTakeProfitLimit
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", domain.SideSell)
	params.Set("type", orderType)
	params.Set("timeInForce", domain.TimeInForceGTC)
	params.Set("quantity", formatQty(quantity))
	params.Set("price", formatQty(limitPrice))
	params.Set("stopPrice", formatQty(triggerPrice))
	params.Set("newClientOrderId", uuid.NewString())

	var order orderResponse
	if err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", params, &order); err != nil {
		return "", err
	}

	return strconv.FormatInt(order.OrderID, 10), nil
}

// signedRequest выполняет подписанный запрос (HMAC SHA256 по query string)
func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", domain.BinanceRecvWindow)

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	endpoint := c.baseURL + path + "?" + query
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	return c.do(req, out)
}

// do выполняет запрос и маппит ошибки Binance на доменные
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			return mapAPIError(apiErr)
		}
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrExchangeAPI, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// mapAPIError различает отклоненные ключи, нехватку баланса и прочие
// ошибки биржи
func mapAPIError(apiErr apiError) error {
	switch apiErr.Code {
	case codeInvalidAPIKey, codeBadAPIKeyFormat, codeUnauthorizedReq:
		return fmt.Errorf("%w: code=%d: %s", domain.ErrAuth, apiErr.Code, apiErr.Msg)
	case codeInsufficientBalance:
		return fmt.Errorf("%w: code=%d: %s", domain.ErrInsufficientBalance, apiErr.Code, apiErr.Msg)
	default:
		return fmt.Errorf("%w: code=%d: %s", domain.ErrExchangeAPI, apiErr.Code, apiErr.Msg)
	}
}

func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// formatQty печатает количество/цену в принятом биржей формате
func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// avgFillPrice считает средневзвешенную цену по филлам ордера
func avgFillPrice(order orderResponse) (price, quantity float64) {
	var notional, qty float64
	for _, fill := range order.Fills {
		p, err1 := strconv.ParseFloat(fill.Price, 64)
		q, err2 := strconv.ParseFloat(fill.Qty, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if q == 0 {
			// биржа иногда опускает количество: берем первую цену
			if price == 0 {
				price = p
			}
			continue
		}
		notional += p * q
		qty += q
	}
	if qty > 0 {
		return notional / qty, qty
	}
	return price, 0
}
