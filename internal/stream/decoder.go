// Package stream decodes the assistant's server-sent event stream into
// discrete frames.
//
// The decoder is a pure function over (carry-over buffer, chunk): transport
// reads hand it raw text in arbitrary slices, and it returns every frame
// that is complete so far plus the leftover text to prepend to the next
// read. Splitting the same stream at different chunk boundaries always
// yields the same frame sequence.
package stream

import (
	"encoding/json"
	"strings"
)

// Frame is one decoded unit of the stream: an event label plus its payload.
//
// Raw holds the joined payload text exactly as received; Data holds the
// JSON-decoded value. Frames are transient, produced and consumed within a
// single decode cycle.
type Frame struct {
	Event string
	Raw   string
	Data  any
}

// DefaultEvent is the label assigned to frames that carry no explicit
// event line, per the SSE spec.
const DefaultEvent = "message"

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
	delimiter   = "\n\n"
)

// Decode splits buffer+chunk into complete frame blocks and returns the
// decoded frames along with the new carry-over buffer.
//
// A block is complete once its terminating blank line has arrived; the
// trailing incomplete block is returned as carry-over. A complete block
// whose payload does not yet decode as JSON is not dropped: it is held and
// merged with the blocks that follow, because a JSON value can legitimately
// span more than one flush of the transport.
//
// Decode never blocks and performs no I/O.
func Decode(buffer, chunk string) ([]Frame, string) {
	text := buffer + chunk

	blocks := strings.Split(text, delimiter)
	// The final element is the not-yet-terminated block (often "").
	trailing := blocks[len(blocks)-1]
	blocks = blocks[:len(blocks)-1]

	var frames []Frame
	pending := ""
	for _, block := range blocks {
		if pending != "" {
			// A re-queued block merges with its successor: joining with a
			// single newline makes the continuation's data lines
			// concatenate with the split value.
			block = pending + "\n" + block
		}
		frame, ok := parseBlock(block)
		if !ok {
			pending = block
			continue
		}
		pending = ""
		if frame != nil {
			frames = append(frames, *frame)
		}
	}

	if pending != "" {
		// The trailing newline keeps the pending block's lines separate
		// from whatever the next chunk starts with.
		return frames, pending + "\n" + trailing
	}
	return frames, trailing
}

// parseBlock decodes a single complete block. It returns (nil, true) for
// blocks that contain nothing actionable (comments, stray blank content)
// and (nil, false) when the payload text is present but not yet valid JSON.
func parseBlock(block string) (*Frame, bool) {
	event := ""
	var dataParts []string

	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, eventPrefix):
			event = trimFieldValue(line, eventPrefix)
		case strings.HasPrefix(line, dataPrefix):
			dataParts = append(dataParts, trimFieldValue(line, dataPrefix))
		default:
			// SSE comments start with ":"; anything else unknown is
			// ignored for forward compatibility.
		}
	}

	if event == "" && len(dataParts) == 0 {
		return nil, true
	}
	if event == "" {
		event = DefaultEvent
	}

	frame := &Frame{Event: event}
	if len(dataParts) > 0 {
		frame.Raw = strings.Join(dataParts, "")
		var value any
		if err := json.Unmarshal([]byte(frame.Raw), &value); err != nil {
			return nil, false
		}
		frame.Data = value
	}
	return frame, true
}

// trimFieldValue strips the field prefix and the single optional leading
// space the SSE spec allows.
func trimFieldValue(line, prefix string) string {
	value := strings.TrimPrefix(line, prefix)
	return strings.TrimPrefix(value, " ")
}
