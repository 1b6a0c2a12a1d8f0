// Package structured classifies streaming prose deltas that are actually an
// embedded JSON layout, and extracts that layout from accumulated raw text
// when the stream never delivered a proper layout frame.
//
// The model is asked to answer with a structured payload, but it frequently
// wraps it in markdown fences, prefixes it with a bare "json" label, or
// streams it as plain message deltas. Everything in this package exists to
// keep that partial JSON from leaking into the visible transcript.
package structured

import (
	"strings"
)

// fenceMarker is the markdown code-fence delimiter.
const fenceMarker = "```"

// Detector decides, delta by delta, whether a turn's prose stream is really
// a structured payload. The decision is sticky: once any delta classifies
// structured, every later delta of the turn does too, regardless of its own
// content — JSON bodies rarely re-trigger the opening heuristics.
//
// A Detector belongs to one turn and is not safe for concurrent use.
type Detector struct {
	structured bool
}

// Observe classifies the next prose delta and returns the turn's current
// structured flag.
//
// A delta trips the detector when, in order:
//  1. it contains a fenced JSON-block opening marker ("```json"), or
//  2. it is a standalone "json" label line, or
//  3. after stripping fence markers and trimming, it starts with "{".
func (d *Detector) Observe(delta string) bool {
	if d.structured {
		return true
	}

	lower := strings.ToLower(delta)
	switch {
	case strings.Contains(lower, fenceMarker+"json"):
		d.structured = true
	case strings.TrimSpace(lower) == "json":
		d.structured = true
	default:
		stripped := strings.TrimSpace(strings.ReplaceAll(delta, fenceMarker, ""))
		if strings.HasPrefix(stripped, "{") {
			d.structured = true
		}
	}
	return d.structured
}

// Structured reports whether any observed delta classified as structured.
func (d *Detector) Structured() bool {
	return d.structured
}
