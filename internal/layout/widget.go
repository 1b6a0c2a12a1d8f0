// Package layout holds the widget data model and the reconciliation logic
// that merges a structured layout against the widgets a turn has already
// collected from live tool events.
package layout

import "github.com/google/uuid"

// Widget is one renderable unit of an assistant response: a type tag plus
// optional free text, data bag, chart subtype, and rendering options.
// Identity is stable once assigned; a merge may refresh the id only when
// the incoming side provides one.
type Widget struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	ChartType string         `json:"chart_type,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// StructuredResponse is the canonical per-turn rendering contract: an
// optional summary plus the ordered widget list.
type StructuredResponse struct {
	Summary   string   `json:"summary,omitempty"`
	Responses []Widget `json:"responses"`
}

// Widget type tags emitted by the assistant's tool layer.
const (
	TypeText          = "text"
	TypeTable         = "table"
	TypeChart         = "chart"
	TypeMetricGrid    = "metric_grid"
	TypeNewsList      = "news_list"
	TypeAlertsPanel   = "alerts_panel"
	TypePortfolio     = "portfolio"
	TypeWatchlist     = "watchlist"
	TypeFollowUp      = "follow_up"
	TypeAssetIntel    = "asset_intel"
	TypeAssetOverview = "asset_overview"
	TypeCompareAssets = "compare_assets"
	TypeFundamentals  = "fundamentals_snapshot"
	TypePriceQuotes   = "price_quotes"
	TypeTrendingCoins = "trending_coins"
	TypeTechnical     = "technical_analysis"
	TypeMarketPulse   = "market_pulse"
)

// authoritativeTypes are the widget types whose tool-sourced payload always
// wins over the layout's version of the same type. The tool emits the full
// dataset; the final layout usually carries only a thin stub for these.
var authoritativeTypes = map[string]bool{
	TypeTable:         true,
	TypeChart:         true,
	TypeMetricGrid:    true,
	TypeNewsList:      true,
	TypeAlertsPanel:   true,
	TypePortfolio:     true,
	TypeWatchlist:     true,
	TypeAssetIntel:    true,
	TypeAssetOverview: true,
	TypeCompareAssets: true,
	TypeFundamentals:  true,
	TypePriceQuotes:   true,
	TypeTrendingCoins: true,
	TypeTechnical:     true,
	TypeMarketPulse:   true,
}

// Authoritative reports whether widgets of the given type keep their
// tool-sourced payload verbatim through reconciliation.
func Authoritative(widgetType string) bool {
	return authoritativeTypes[widgetType]
}

// NewID returns a fresh widget identifier.
func NewID() string {
	return uuid.NewString()
}
