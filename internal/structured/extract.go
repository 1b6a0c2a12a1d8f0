package structured

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/marketmate/marketmate/internal/layout"
)

var (
	fencePattern = regexp.MustCompile("(?i)```(?:json)?\\s*([\\s\\S]+?)\\s*```")
	labelPattern = regexp.MustCompile(`(?i)^json\b[:=\s-]*`)
)

// layoutProbe defers widget decoding so the required shape — a list-typed
// "responses" field — can be checked before anything is trusted.
type layoutProbe struct {
	Summary   string          `json:"summary"`
	Responses json.RawMessage `json:"responses"`
}

// Extract recovers a structured response from a turn's full accumulated raw
// text after the stream closed without a layout frame.
//
// It is deliberately a heuristic, not a parser: strip markdown fences and a
// loose leading "json" label, slice from the first "{" to the last "}", and
// try to decode. The result is accepted only if its widget collection field
// is a JSON array. Returns ok=false for anything else.
func Extract(raw string) (layout.StructuredResponse, bool) {
	candidate := StripFences(raw)

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return layout.StructuredResponse{}, false
	}
	candidate = candidate[start : end+1]

	return DecodeLayout([]byte(candidate))
}

// DecodeLayout decodes bytes into a StructuredResponse, requiring the
// list-typed widget collection field. Malformed-but-salvageable JSON gets a
// single repair pass before being rejected; model output is untrusted and
// often truncated or loosely quoted.
func DecodeLayout(data []byte) (layout.StructuredResponse, bool) {
	var probe layoutProbe
	if err := unmarshalLenient(data, &probe); err != nil {
		return layout.StructuredResponse{}, false
	}
	if !isArray(probe.Responses) {
		return layout.StructuredResponse{}, false
	}

	var widgets []layout.Widget
	if err := unmarshalLenient(probe.Responses, &widgets); err != nil {
		return layout.StructuredResponse{}, false
	}

	return layout.StructuredResponse{Summary: probe.Summary, Responses: widgets}, true
}

// StripFences removes markdown code fences and a loose leading "json"
// label, returning the inner candidate text.
func StripFences(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	candidate := trimmed
	if match := fencePattern.FindStringSubmatch(trimmed); match != nil {
		candidate = match[1]
	}
	candidate = labelPattern.ReplaceAllString(candidate, "")
	return strings.TrimSpace(candidate)
}

// unmarshalLenient unmarshals data into v, repairing the JSON and retrying
// once when the initial pass fails with a syntax error.
func unmarshalLenient(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// isArray reports whether raw is a JSON array.
func isArray(raw json.RawMessage) bool {
	text := strings.TrimSpace(string(raw))
	return strings.HasPrefix(text, "[")
}
