// Package testutil provides shared test helpers for composing SSE streams
// and silencing loggers.
package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// StreamBuilder composes an SSE byte stream for decoder and orchestrator
// tests. Events are appended in order and rendered per the W3C wire format:
// an optional "event:" line, one or more "data:" lines, and a blank line.
type StreamBuilder struct {
	buf strings.Builder
}

// Event appends an event with a JSON-encoded payload.
func (b *StreamBuilder) Event(t *testing.T, name string, payload any) *StreamBuilder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal SSE payload: %v", err)
	}
	return b.RawEvent(name, string(raw))
}

// RawEvent appends an event with a verbatim data line, for payloads that
// are intentionally not valid JSON.
func (b *StreamBuilder) RawEvent(name, data string) *StreamBuilder {
	if name != "" {
		b.buf.WriteString("event: " + name + "\n")
	}
	b.buf.WriteString("data: " + data + "\n\n")
	return b
}

// DataLines appends an event whose payload spans several "data:" lines, the
// way servers flush large JSON values.
func (b *StreamBuilder) DataLines(name string, lines ...string) *StreamBuilder {
	if name != "" {
		b.buf.WriteString("event: " + name + "\n")
	}
	for _, line := range lines {
		b.buf.WriteString("data: " + line + "\n")
	}
	b.buf.WriteString("\n")
	return b
}

// String returns the composed stream.
func (b *StreamBuilder) String() string {
	return b.buf.String()
}

// Chunks splits the composed stream into size-byte reads, simulating how a
// network body arrives in arbitrary fragments.
func (b *StreamBuilder) Chunks(size int) []string {
	s := b.buf.String()
	var out []string
	for len(s) > 0 {
		n := size
		if n > len(s) {
			n = len(s)
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}
