// Package hydrate enriches asset-intel widgets whose payload arrived
// partial: the tool layer often emits just an asset reference, and the
// overview, news, and on-chain slices are fetched client-side from three
// independent sources. Fetches run concurrently and individual failures
// degrade to per-widget notices instead of aborting the render.
package hydrate

import (
	"context"
	"strings"
	"sync"

	"github.com/marketmate/marketmate/internal/layout"
	"github.com/marketmate/marketmate/internal/log"
)

// NewsItem is the subset of a news article the widget renders. Body feeds
// only the sentiment heuristic and never reaches the widget data bag.
type NewsItem struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Body        string `json:"-"`
}

// MarketSource serves the asset overview slice.
type MarketSource interface {
	AssetOverview(ctx context.Context, asset, currency string, lookbackDays int) (map[string]any, error)
}

// NewsSource serves the news slice and its keyword sentiment summary.
type NewsSource interface {
	AssetNews(ctx context.Context, asset string, limit int) ([]NewsItem, error)
	Sentiment(items []NewsItem) map[string]any
}

// ChainSource serves the on-chain slice. Assets without a supported network
// return an error, surfaced as a notice.
type ChainSource interface {
	NetworkSnapshot(ctx context.Context, asset string) (map[string]any, error)
}

// Notice strings recorded on the widget when a sub-fetch fails.
const (
	noticeOverview = "Live price data unavailable (CoinGecko rate limit)."
	noticeNews     = "News feed unavailable."
	noticeOnChain  = "On-chain data unavailable for this asset."
)

const (
	hydratedKey  = "_hydrated"
	noticesKey   = "errors"
	newsLimit    = 3
	lookbackDays = 7
)

// Hydrator fetches the missing slices of one asset-intel widget. It is
// stateless and safe for concurrent use; each Hydrate call coordinates only
// its own sub-fetches.
type Hydrator struct {
	market MarketSource
	news   NewsSource
	chain  ChainSource
	logger log.Logger
}

// New wires a Hydrator. Any source may be nil; its slice is then skipped
// with the matching notice recorded only when the slice was missing.
func New(market MarketSource, news NewsSource, chain ChainSource, logger log.Logger) *Hydrator {
	return &Hydrator{market: market, news: news, chain: chain, logger: logger}
}

// Hydrate patches the widget's data bag with the overview, news, and
// on-chain slices, fetching concurrently and only the slices that are
// absent or malformed. It returns (patched, true) when anything changed and
// (zero, false) when the widget is not eligible: wrong type, already
// hydrated, or no resolvable entity key.
//
// Hydrate works on a copy; the caller decides whether the result still
// applies (the payload may have been superseded while fetches were in
// flight).
func (h *Hydrator) Hydrate(ctx context.Context, w layout.Widget) (layout.Widget, bool) {
	if w.Type != layout.TypeAssetIntel {
		return layout.Widget{}, false
	}
	if flag, ok := w.Data[hydratedKey].(bool); ok && flag {
		return layout.Widget{}, false
	}

	asset := ResolveAsset(w)
	if asset == "" {
		h.logger.Debug("hydration skipped, no entity key", "widget", w.ID)
		return layout.Widget{}, false
	}

	currency := stringField(w.Options, "currency")
	if currency == "" {
		currency = stringField(w.Data, "currency")
	}
	if currency == "" {
		currency = "usd"
	}

	var (
		mu      sync.Mutex
		notices []string

		overview map[string]any
		items    []NewsItem
		haveNews bool
		chain    map[string]any
	)
	note := func(msg string) {
		mu.Lock()
		notices = append(notices, msg)
		mu.Unlock()
	}

	var wg sync.WaitGroup

	if h.market != nil && !isMap(w.Data["overview"]) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.market.AssetOverview(ctx, asset, currency, lookbackDays)
			if err != nil {
				h.logger.Warn("overview fetch failed", "asset", asset, "error", err)
				note(noticeOverview)
				return
			}
			mu.Lock()
			overview = out
			mu.Unlock()
		}()
	}

	if h.news != nil && !isList(w.Data["news"]) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.news.AssetNews(ctx, asset, newsLimit)
			if err != nil {
				h.logger.Warn("news fetch failed", "asset", asset, "error", err)
				note(noticeNews)
				return
			}
			mu.Lock()
			items = out
			haveNews = true
			mu.Unlock()
		}()
	}

	if h.chain != nil && !isMap(w.Data["onchain"]) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.chain.NetworkSnapshot(ctx, asset)
			if err != nil {
				h.logger.Warn("on-chain fetch failed", "asset", asset, "error", err)
				note(noticeOnChain)
				return
			}
			mu.Lock()
			chain = out
			mu.Unlock()
		}()
	}

	wg.Wait()

	data := cloneMap(w.Data)
	data["asset"] = asset
	if overview != nil {
		data["overview"] = mergeInto(w.Data["overview"], overview)
	}
	if haveNews {
		rendered := make([]map[string]any, 0, len(items))
		for _, item := range items {
			rendered = append(rendered, map[string]any{
				"title":        item.Title,
				"source":       item.Source,
				"url":          item.URL,
				"published_at": item.PublishedAt,
			})
		}
		data["news"] = rendered
		data["sentiment"] = h.news.Sentiment(items)
	}
	if chain != nil {
		data["onchain"] = mergeInto(w.Data["onchain"], chain)
	}

	// A fresh OHLC series upgrades the widget to a candlestick chart.
	if series, ok := overview["ohlc_series"].([]any); ok && len(series) > 0 {
		data["series"] = series
		w.ChartType = "candlestick"
	}

	data[hydratedKey] = true
	data[noticesKey] = appendNotices(w.Data[noticesKey], notices)

	w.Data = data
	return w, true
}

// mergeInto deep-merges src over whatever map previously sat at the slice,
// preserving keys the fetch did not return.
func mergeInto(existing any, src map[string]any) map[string]any {
	base, ok := existing.(map[string]any)
	if !ok {
		return src
	}
	out := cloneMap(base)
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			out[k] = mergeInto(out[k], sub)
			continue
		}
		out[k] = v
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+6)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func appendNotices(existing any, notices []string) []string {
	var out []string
	switch prior := existing.(type) {
	case []string:
		out = append(out, prior...)
	case []any:
		for _, v := range prior {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return append(out, notices...)
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []map[string]any:
		return true
	default:
		return false
	}
}
