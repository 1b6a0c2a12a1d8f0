package market

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/marketmate/marketmate/internal/log"
)

const coinDetailBody = `{
	"id": "bitcoin",
	"symbol": "btc",
	"name": "Bitcoin",
	"market_data": {
		"current_price": {"usd": 67000.5, "eur": 61000.25},
		"price_change_percentage_24h": 2.4,
		"market_cap": {"usd": 1320000000000, "eur": 1200000000000}
	}
}`

const ohlcBody = `[
	[1724200000000, 66000, 67500, 65800, 67000],
	[1724203600000, 67000, 67200, 66500, 66900]
]`

func newCoinGeckoStub(t *testing.T, detailCalls, ohlcCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/coins/bitcoin":
			detailCalls.Add(1)
			io.WriteString(w, coinDetailBody)
		case "/api/v3/coins/bitcoin/ohlc":
			ohlcCalls.Add(1)
			if got := r.URL.Query().Get("vs_currency"); got != "usd" {
				t.Errorf("vs_currency = %q, want usd", got)
			}
			io.WriteString(w, ohlcBody)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func TestAssetOverview(t *testing.T) {
	t.Parallel()

	var detailCalls, ohlcCalls atomic.Int32
	srv := newCoinGeckoStub(t, &detailCalls, &ohlcCalls)
	defer srv.Close()

	client := New(srv.URL, "", log.NewNop())
	got, err := client.AssetOverview(context.Background(), "BTC", "usd", 7)
	if err != nil {
		t.Fatalf("AssetOverview: %v", err)
	}

	if got["asset"] != "bitcoin" {
		t.Errorf("asset = %v, want the override id", got["asset"])
	}
	if got["symbol"] != "BTC" {
		t.Errorf("symbol = %v", got["symbol"])
	}
	if got["name"] != "Bitcoin" {
		t.Errorf("name = %v", got["name"])
	}
	if got["current_price"] != 67000.5 {
		t.Errorf("current_price = %v", got["current_price"])
	}
	if got["change_24h"] != 2.4 {
		t.Errorf("change_24h = %v", got["change_24h"])
	}

	series, _ := got["ohlc_series"].([]any)
	if len(series) != 2 {
		t.Fatalf("ohlc_series = %v", got["ohlc_series"])
	}
	first, _ := series[0].(map[string]any)
	if first["open"] != 66000.0 || first["close"] != 67000.0 {
		t.Errorf("first candle = %v", first)
	}
}

func TestAssetOverview_CachedWithinTTL(t *testing.T) {
	t.Parallel()

	var detailCalls, ohlcCalls atomic.Int32
	srv := newCoinGeckoStub(t, &detailCalls, &ohlcCalls)
	defer srv.Close()

	client := New(srv.URL, "", log.NewNop())
	for i := 0; i < 3; i++ {
		if _, err := client.AssetOverview(context.Background(), "bitcoin", "usd", 7); err != nil {
			t.Fatalf("AssetOverview #%d: %v", i, err)
		}
	}
	if n := detailCalls.Load(); n != 1 {
		t.Errorf("detail fetched %d times within the TTL, want 1", n)
	}
}

func TestAssetOverview_CurrencySelectsKey(t *testing.T) {
	t.Parallel()

	var detailCalls, ohlcCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/coins/bitcoin":
			detailCalls.Add(1)
			io.WriteString(w, coinDetailBody)
		default:
			ohlcCalls.Add(1)
			io.WriteString(w, "[]")
		}
	}))
	defer srv.Close()

	client := New(srv.URL, "", log.NewNop())
	got, err := client.AssetOverview(context.Background(), "btc", "EUR", 7)
	if err != nil {
		t.Fatalf("AssetOverview: %v", err)
	}
	if got["current_price"] != 61000.25 {
		t.Errorf("current_price = %v, want the eur value", got["current_price"])
	}
	if _, ok := got["ohlc_series"]; ok {
		t.Error("empty ohlc response still produced a series")
	}
}

func TestAssetOverview_OHLCFailureDegrades(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/coins/bitcoin" {
			io.WriteString(w, coinDetailBody)
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(srv.URL, "", log.NewNop())
	got, err := client.AssetOverview(context.Background(), "bitcoin", "usd", 7)
	if err != nil {
		t.Fatalf("AssetOverview: %v", err)
	}
	if got["current_price"] != 67000.5 {
		t.Errorf("current_price = %v", got["current_price"])
	}
	if _, ok := got["ohlc_series"]; ok {
		t.Error("series present despite a failed ohlc fetch")
	}
}

func TestAssetOverview_DetailFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(srv.URL, "", log.NewNop())
	if _, err := client.AssetOverview(context.Background(), "bitcoin", "usd", 7); err == nil {
		t.Error("AssetOverview succeeded on a 429")
	}
}

func TestAssetOverview_APIKeyHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-cg-demo-api-key"); got != "demo-key" {
			t.Errorf("api key header = %q", got)
		}
		if r.URL.Path == "/api/v3/coins/bitcoin" {
			io.WriteString(w, coinDetailBody)
			return
		}
		io.WriteString(w, "[]")
	}))
	defer srv.Close()

	client := New(srv.URL, "demo-key", log.NewNop())
	if _, err := client.AssetOverview(context.Background(), "bitcoin", "usd", 7); err != nil {
		t.Fatalf("AssetOverview: %v", err)
	}
}

func TestResolveAssetID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"btc", "bitcoin"},
		{"  ETH ", "ethereum"},
		{"matic", "polygon-pos"},
		{"bitcoin", "bitcoin"},
		{"some-new-coin", "some-new-coin"},
	}
	for _, tt := range tests {
		if got := resolveAssetID(tt.in); got != tt.want {
			t.Errorf("resolveAssetID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
