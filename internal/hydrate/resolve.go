package hydrate

import (
	"regexp"
	"strings"

	"github.com/marketmate/marketmate/internal/layout"
)

// Ticker symbols with a known asset slug. Bare upper-case tokens in widget
// content are only trusted when they appear here.
var tickerSlugs = map[string]string{
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

// Common full names mapped to their asset slug, matched as substrings of
// lower-cased widget content.
var nameSlugs = []struct {
	name string
	slug string
}{
	{"bitcoin", "bitcoin"},
	{"ethereum", "ethereum"},
	{"solana", "solana"},
	{"cardano", "cardano"},
	{"dogecoin", "dogecoin"},
	{"polygon", "polygon-pos"},
	{"polkadot", "polkadot"},
	{"binance", "binancecoin"},
	{"ripple", "ripple"},
	{"litecoin", "litecoin"},
	{"avalanche", "avalanche"},
	{"toncoin", "toncoin"},
}

var (
	parenTickerPattern = regexp.MustCompile(`\(([A-Z]{2,6})\)`)
	upperTickerPattern = regexp.MustCompile(`\b([A-Z]{2,6})\b`)
)

// ResolveAsset extracts the entity key a hydration pass should fetch for.
//
// Candidates are checked in order: data.asset, data.symbol, options.asset,
// options.symbol — the first well-formed identifier string wins, lowered.
// Failing those, the widget's free text is scanned: a parenthesized ticker
// like "(BTC)", then a bare upper-case ticker from the known table, then a
// common asset name anywhere in the text. Returns "" when nothing resolves.
func ResolveAsset(w layout.Widget) string {
	for _, candidate := range []string{
		stringField(w.Data, "asset"),
		stringField(w.Data, "symbol"),
		stringField(w.Options, "asset"),
		stringField(w.Options, "symbol"),
	} {
		if candidate != "" {
			return strings.ToLower(candidate)
		}
	}

	content := strings.TrimSpace(w.Content)
	if content == "" {
		return ""
	}

	if m := parenTickerPattern.FindStringSubmatch(content); m != nil {
		return strings.ToLower(m[1])
	}
	if m := upperTickerPattern.FindStringSubmatch(content); m != nil {
		token := strings.ToLower(m[1])
		if _, ok := tickerSlugs[token]; ok {
			return token
		}
	}

	lowered := strings.ToLower(content)
	for _, entry := range nameSlugs {
		if strings.Contains(lowered, entry.name) {
			return entry.slug
		}
	}
	return ""
}
