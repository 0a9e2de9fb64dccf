package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/edwinv/session-bot/internal/domain"
)

func TestClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/account" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != "test-key" {
			t.Errorf("Missing API key header")
		}
		if r.URL.Query().Get("signature") == "" {
			t.Errorf("Request must be signed")
		}
		w.Write([]byte(`{
			"accountType": "SPOT",
			"balances": [
				{"asset": "USDT", "free": "123.45", "locked": "0"},
				{"asset": "BTC", "free": "0.5", "locked": "0.1"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "test-secret", server.URL, nil)

	tests := []struct {
		asset string
		want  float64
	}{
		{"USDT", 123.45},
		{"BTC", 0.5},
		{"ETH", 0}, // неизвестный актив трактуется как нулевой баланс
	}

	for _, tt := range tests {
		got, err := client.GetBalance(context.Background(), tt.asset)
		if err != nil {
			t.Fatalf("GetBalance(%s) unexpected error: %v", tt.asset, err)
		}
		if got != tt.want {
			t.Errorf("GetBalance(%s) = %v, want %v", tt.asset, got, tt.want)
		}
	}
}

func TestClient_AuthErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr error
	}{
		{"invalid api key", -2015, domain.ErrAuth},
		{"bad key format", -2014, domain.ErrAuth},
		{"bad signature", -1022, domain.ErrAuth},
		{"insufficient balance", -2010, domain.ErrInsufficientBalance},
		{"other exchange error", -1121, domain.ErrExchangeAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"code": ` + strconv.Itoa(tt.code) + `, "msg": "rejected"}`))
			}))
			defer server.Close()

			client := NewClient("key", "secret", server.URL, nil)
			err := client.ValidateCredentials(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCredentials() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_GetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %s, want BTCUSDT", got)
		}
		w.Write([]byte(`{"symbol": "BTCUSDT", "price": "50000.12"}`))
	}))
	defer server.Close()

	client := NewClient("key", "secret", server.URL, nil)

	price, err := client.GetPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetPrice() unexpected error: %v", err)
	}
	if price != 50000.12 {
		t.Errorf("GetPrice() = %v, want 50000.12", price)
	}
}

func TestClient_GetPricePrefersCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("REST endpoint should not be hit when the cache is fresh")
	}))
	defer server.Close()

	cache := NewPriceCache()
	cache.Set("BTCUSDT", 49000)

	client := NewClient("key", "secret", server.URL, cache)

	price, err := client.GetPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetPrice() unexpected error: %v", err)
	}
	if price != 49000 {
		t.Errorf("GetPrice() = %v, want cached 49000", price)
	}
}

func TestClient_MarketBuyAveragesFills(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != domain.OrderTypeMarket {
			t.Errorf("type = %s, want MARKET", got)
		}
		if r.URL.Query().Get("newClientOrderId") == "" {
			t.Errorf("newClientOrderId must be set")
		}
		w.Write([]byte(`{
			"orderId": 12345,
			"symbol": "BTCUSDT",
			"status": "FILLED",
			"fills": [
				{"price": "100", "qty": "1"},
				{"price": "102", "qty": "3"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient("key", "secret", server.URL, nil)

	fill, err := client.MarketBuy(context.Background(), "BTCUSDT", 4)
	if err != nil {
		t.Fatalf("MarketBuy() unexpected error: %v", err)
	}
	if fill.OrderID != "12345" {
		t.Errorf("OrderID = %s, want 12345", fill.OrderID)
	}
	// (100*1 + 102*3) / 4 = 101.5
	if fill.Price != 101.5 {
		t.Errorf("Average fill price = %v, want 101.5", fill.Price)
	}
	if fill.Quantity != 4 {
		t.Errorf("Quantity = %v, want 4", fill.Quantity)
	}
}

func TestClient_PlaceConditionalSell(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		wantType string
	}{
		{"stop loss", domain.OrderKindStopLoss, domain.OrderTypeStopLossLimit},
		{"take profit", domain.OrderKindTakeProfit, domain.OrderTypeTakeProfitLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if got := q.Get("type"); got != tt.wantType {
					t.Errorf("type = %s, want %s", got, tt.wantType)
				}
				if got := q.Get("side"); got != domain.SideSell {
					t.Errorf("side = %s, want SELL", got)
				}
				if got := q.Get("timeInForce"); got != domain.TimeInForceGTC {
					t.Errorf("timeInForce = %s, want GTC", got)
				}
				if got := q.Get("stopPrice"); got != "95" {
					t.Errorf("stopPrice = %s, want 95", got)
				}
				if got := q.Get("price"); got != "94.05" {
					t.Errorf("price = %s, want 94.05", got)
				}
				w.Write([]byte(`{"orderId": 777, "symbol": "BTCUSDT", "status": "NEW"}`))
			}))
			defer server.Close()

			client := NewClient("key", "secret", server.URL, nil)

			orderID, err := client.PlaceConditionalSell(context.Background(), "BTCUSDT", 1, 95, 94.05, tt.kind)
			if err != nil {
				t.Fatalf("PlaceConditionalSell() unexpected error: %v", err)
			}
			if orderID != "777" {
				t.Errorf("OrderID = %s, want 777", orderID)
			}
		})
	}
}

func TestPriceCache_Expiry(t *testing.T) {
	cache := NewPriceCache()

	if _, ok := cache.Get("BTCUSDT"); ok {
		t.Error("Empty cache should miss")
	}

	cache.Set("BTCUSDT", 100)
	price, ok := cache.Get("BTCUSDT")
	if !ok || price != 100 {
		t.Errorf("Get() = %v/%v, want 100/true", price, ok)
	}

	// состарим запись вручную
	cache.mu.Lock()
	entry := cache.prices["BTCUSDT"]
	entry.at = entry.at.Add(-priceTTL - 1)
	cache.prices["BTCUSDT"] = entry
	cache.mu.Unlock()

	if _, ok := cache.Get("BTCUSDT"); ok {
		t.Error("Stale entry should miss")
	}
}
