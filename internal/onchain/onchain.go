// Package onchain derives lightweight whale-activity and network-growth
// signals from Blockchair's per-network stats endpoint.
package onchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marketmate/marketmate/internal/log"
)

// DefaultBaseURL is Blockchair's public API root.
const DefaultBaseURL = "https://api.blockchair.com"

const requestTimeout = 10 * time.Second

// ErrUnsupportedAsset is returned for assets without a Blockchair network.
var ErrUnsupportedAsset = errors.New("on-chain data not available for asset")

// Networks Blockchair exposes stats for, keyed by symbol or name.
var networkMap = map[string]string{
	"btc":          "bitcoin",
	"bitcoin":      "bitcoin",
	"eth":          "ethereum",
	"ethereum":     "ethereum",
	"ltc":          "litecoin",
	"litecoin":     "litecoin",
	"doge":         "dogecoin",
	"dogecoin":     "dogecoin",
	"bch":          "bitcoin-cash",
	"bitcoin-cash": "bitcoin-cash",
}

// Client fetches network snapshots from Blockchair.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

// New creates a Blockchair client. baseURL falls back to the public API.
func New(baseURL, apiKey string, logger log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

type statsResponse struct {
	Data    map[string]any `json:"data"`
	Context map[string]any `json:"context"`
}

// NetworkSnapshot summarizes whale activity and network growth for the
// asset's chain. Returns ErrUnsupportedAsset when the asset has no mapped
// network; callers surface that as a per-widget notice.
func (c *Client) NetworkSnapshot(ctx context.Context, asset string) (map[string]any, error) {
	network, ok := networkMap[strings.ToLower(strings.TrimSpace(asset))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}

	stats, statsCtx, err := c.stats(ctx, network)
	if err != nil {
		return nil, err
	}

	marketCap := floatValue(stats["market_cap_usd"])
	var largestTxUSD float64
	if largest, ok := stats["largest_transaction_24h"].(map[string]any); ok {
		largestTxUSD = floatValue(largest["value_usd"])
	}
	whaleRatio := 0.0
	if marketCap > 0 && largestTxUSD > 0 {
		whaleRatio = largestTxUSD / marketCap
	}

	mempoolTPS := floatValue(stats["mempool_tps"])
	mempoolTx := floatValue(stats["mempool_transactions"])
	tx24h := floatValue(stats["transactions_24h"])
	hodlers := floatValue(stats["hodling_addresses"])

	var whaleState string
	switch {
	case whaleRatio > 0.004:
		whaleState = "aggressive accumulation"
	case whaleRatio > 0.0015:
		whaleState = "steady accumulation"
	case whaleRatio < 0.0003 && largestTxUSD > 0:
		whaleState = "distribution"
	default:
		whaleState = "balanced"
	}

	networkHeat := 0.0
	if tx24h > 0 {
		networkHeat = mempoolTx / tx24h * 100
	}
	var growthState string
	switch {
	case networkHeat > 40:
		growthState = "network demand is spiking"
	case networkHeat > 20:
		growthState = "usage is trending higher"
	case networkHeat < 10:
		growthState = "activity is subdued"
	default:
		growthState = "activity is steady"
	}

	bestBlockTime := stats["best_block_time"]
	if bestBlockTime == nil {
		bestBlockTime = statsCtx["time"]
	}

	return map[string]any{
		"asset":   strings.ToLower(asset),
		"network": network,
		"whale_activity": map[string]any{
			"state":                   whaleState,
			"largest_transaction_usd": largestTxUSD,
			"market_cap_usd":          marketCap,
			"ratio":                   round6(whaleRatio),
			"mempool_tps":             mempoolTPS,
		},
		"network_growth": map[string]any{
			"state":                growthState,
			"mempool_transactions": mempoolTx,
			"transactions_24h":     tx24h,
			"hodling_addresses":    hodlers,
			"heat_pct":             round2(networkHeat),
		},
		"best_block_time": bestBlockTime,
	}, nil
}

func (c *Client) stats(ctx context.Context, network string) (map[string]any, map[string]any, error) {
	endpoint := fmt.Sprintf("%s/%s/stats", c.baseURL, url.PathEscape(network))
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch stats: unexpected status %d", resp.StatusCode)
	}

	var out statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("decode stats: %w", err)
	}
	return out.Data, out.Context, nil
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
