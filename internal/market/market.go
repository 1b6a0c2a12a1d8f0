// Package market is a thin CoinGecko client serving the asset overview
// slice of hydration. CoinGecko's free tier rate-limits aggressively, so
// every request passes a shared client-side limiter and overviews are
// cached briefly.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/marketmate/marketmate/internal/log"
)

// DefaultBaseURL is CoinGecko's public API root.
const DefaultBaseURL = "https://api.coingecko.com"

const (
	requestTimeout = 10 * time.Second
	cacheTTL       = 60 * time.Second

	// Free tier allows roughly 10-30 calls/minute; stay well under it.
	requestsPerMinute = 10
)

// Symbol shorthands CoinGecko knows under a different id.
var assetOverrides = map[string]string{
	"btc":   "bitcoin",
	"eth":   "ethereum",
	"sol":   "solana",
	"ada":   "cardano",
	"doge":  "dogecoin",
	"matic": "polygon-pos",
	"dot":   "polkadot",
	"bnb":   "binancecoin",
	"xrp":   "ripple",
	"ltc":   "litecoin",
}

// Client fetches asset overviews from CoinGecko.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger

	mu    sync.Mutex
	cache map[string]cachedOverview
}

type cachedOverview struct {
	at       time.Time
	overview map[string]any
}

// New creates a CoinGecko client. baseURL falls back to the public API;
// apiKey may be empty on the free tier.
func New(baseURL, apiKey string, logger log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/requestsPerMinute), requestsPerMinute),
		logger:     logger,
		cache:      make(map[string]cachedOverview),
	}
}

// AssetOverview builds the overview slice for one asset: identity, current
// price, 24h change, market cap, and an OHLC candlestick series covering
// lookbackDays.
func (c *Client) AssetOverview(ctx context.Context, asset, currency string, lookbackDays int) (map[string]any, error) {
	assetID := resolveAssetID(asset)
	cacheKey := fmt.Sprintf("%s/%s/%d", assetID, currency, lookbackDays)

	c.mu.Lock()
	if cached, ok := c.cache[cacheKey]; ok && time.Since(cached.at) < cacheTTL {
		c.mu.Unlock()
		return cached.overview, nil
	}
	c.mu.Unlock()

	detail, err := c.coinDetail(ctx, assetID)
	if err != nil {
		return nil, err
	}

	overview := map[string]any{
		"asset":  assetID,
		"symbol": strings.ToUpper(stringValue(detail["symbol"])),
		"name":   detail["name"],
	}
	if marketData, ok := detail["market_data"].(map[string]any); ok {
		overview["current_price"] = currencyValue(marketData["current_price"], currency)
		overview["change_24h"] = marketData["price_change_percentage_24h"]
		overview["market_cap"] = currencyValue(marketData["market_cap"], currency)
	}

	// OHLC failure degrades to an overview without the candlestick series.
	if series, err := c.ohlcSeries(ctx, assetID, currency, lookbackDays); err != nil {
		c.logger.Warn("ohlc fetch failed", "asset", assetID, "error", err)
	} else if len(series) > 0 {
		overview["ohlc_series"] = series
	}

	c.mu.Lock()
	c.cache[cacheKey] = cachedOverview{at: time.Now(), overview: overview}
	c.mu.Unlock()

	return overview, nil
}

// coinDetail fetches /api/v3/coins/{id}.
func (c *Client) coinDetail(ctx context.Context, assetID string) (map[string]any, error) {
	query := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}
	var detail map[string]any
	path := fmt.Sprintf("/api/v3/coins/%s", url.PathEscape(assetID))
	if err := c.get(ctx, path, query, &detail); err != nil {
		return nil, fmt.Errorf("coin detail %s: %w", assetID, err)
	}
	return detail, nil
}

// ohlcSeries fetches /api/v3/coins/{id}/ohlc and reshapes the point tuples
// into labeled objects.
func (c *Client) ohlcSeries(ctx context.Context, assetID, currency string, days int) ([]any, error) {
	query := url.Values{
		"vs_currency": {currency},
		"days":        {fmt.Sprintf("%d", days)},
	}
	var points [][]float64
	path := fmt.Sprintf("/api/v3/coins/%s/ohlc", url.PathEscape(assetID))
	if err := c.get(ctx, path, query, &points); err != nil {
		return nil, err
	}

	series := make([]any, 0, len(points))
	for _, p := range points {
		if len(p) < 5 {
			continue
		}
		series = append(series, map[string]any{
			"timestamp": p[0],
			"open":      p[1],
			"high":      p[2],
			"low":       p[3],
			"close":     p[4],
		})
	}
	return series, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func resolveAssetID(asset string) string {
	asset = strings.ToLower(strings.TrimSpace(asset))
	if id, ok := assetOverrides[asset]; ok {
		return id
	}
	return asset
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func currencyValue(v any, currency string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[strings.ToLower(currency)]
}
