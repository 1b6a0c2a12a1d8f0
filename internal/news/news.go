// Package news wraps CryptoCompare's public news feed and derives a crude
// keyword sentiment gauge from the returned headlines.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/marketmate/marketmate/internal/hydrate"
	"github.com/marketmate/marketmate/internal/log"
)

// DefaultBaseURL is CryptoCompare's public news endpoint.
const DefaultBaseURL = "https://min-api.cryptocompare.com/data/v2/news/"

const requestTimeout = 10 * time.Second

var positiveKeywords = []string{
	"surge", "upgrades", "upgrade", "bull", "bullish", "record",
	"partnership", "approve", "adopt", "rally", "growth", "funding",
	"investment", "accumulate",
}

var negativeKeywords = []string{
	"hack", "ban", "lawsuit", "sell-off", "bear", "bearish", "outage",
	"exploit", "downgrade", "fear", "crash", "plunge", "liquidation",
	"investigation",
}

// Client fetches asset-tagged news items.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

// New creates a news client. baseURL falls back to the public feed; apiKey
// may be empty.
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

type feedEntry struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Source     string `json:"source"`
	SourceInfo struct {
		Name string `json:"name"`
	} `json:"source_info"`
	PublishedOn int64  `json:"published_on"`
	Tags        string `json:"tags"`
	Body        string `json:"body"`
}

type feedResponse struct {
	Data []feedEntry `json:"Data"`
}

// AssetNews returns up to limit popular articles tagged with the asset.
func (c *Client) AssetNews(ctx context.Context, asset string, limit int) ([]hydrate.NewsItem, error) {
	query := url.Values{
		"lang":      {"EN"},
		"sortOrder": {"popular"},
		"limit":     {fmt.Sprintf("%d", limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Apikey "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch news: unexpected status %d", resp.StatusCode)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode news feed: %w", err)
	}

	asset = strings.ToLower(asset)
	items := make([]hydrate.NewsItem, 0, limit)
	for _, entry := range feed.Data {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}
		if asset != "" && !tagged(entry.Tags, asset) {
			continue
		}

		source := entry.Source
		if source == "" {
			source = entry.SourceInfo.Name
		}
		if source == "" {
			source = "Unknown"
		}

		items = append(items, hydrate.NewsItem{
			Title:       title,
			URL:         entry.URL,
			Source:      source,
			PublishedAt: time.Unix(entry.PublishedOn, 0).UTC().Format(time.RFC3339),
			Body:        strings.TrimSpace(entry.Body),
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// Sentiment gauges the articles with keyword heuristics. The score is the
// net keyword hit count normalized by sample size.
func (c *Client) Sentiment(items []hydrate.NewsItem) map[string]any {
	if len(items) == 0 {
		return map[string]any{"score": 0.0, "label": "neutral", "keywords": []string{}}
	}

	score := 0
	hits := make(map[string]int)
	for _, item := range items {
		text := strings.ToLower(item.Title + " " + item.Body)
		for _, token := range positiveKeywords {
			if strings.Contains(text, token) {
				score++
				hits[token]++
			}
		}
		for _, token := range negativeKeywords {
			if strings.Contains(text, token) {
				score--
				hits[token]++
			}
		}
	}

	normalized := float64(score) / float64(len(items))
	var label string
	switch {
	case normalized > 0.75:
		label = "strongly positive"
	case normalized > 0.25:
		label = "positive"
	case normalized < -0.75:
		label = "strongly negative"
	case normalized < -0.25:
		label = "negative"
	default:
		label = "neutral"
	}

	keywords := make([]string, 0, len(hits))
	for token := range hits {
		keywords = append(keywords, token)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if hits[keywords[i]] != hits[keywords[j]] {
			return hits[keywords[i]] > hits[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}

	return map[string]any{
		"score":       float64(int(normalized*100)) / 100,
		"label":       label,
		"keywords":    keywords,
		"sample_size": len(items),
	}
}

// tagged reports whether the pipe-separated tag list contains the asset.
func tagged(tags, asset string) bool {
	for _, tag := range strings.Split(strings.ToLower(tags), "|") {
		if tag == asset {
			return true
		}
	}
	return false
}
