// Package chat drives the per-turn lifecycle of a conversation with the
// assistant: it opens the event stream, dispatches frames, reconciles
// structured layouts against live tool widgets, and falls back to the
// non-streaming endpoint when the stream produces nothing usable.
package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/marketmate/marketmate/internal/layout"
	"github.com/marketmate/marketmate/internal/structured"
)

// TurnState is the lifecycle state of a single request/response cycle.
type TurnState int

// Turn lifecycle states. Errored is an alternate terminal reachable from
// Sent and Streaming.
const (
	TurnIdle TurnState = iota
	TurnSent
	TurnStreaming
	TurnFinalized
	TurnErrored
)

// String implements fmt.Stringer for log output.
func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnSent:
		return "sent"
	case TurnStreaming:
		return "streaming"
	case TurnFinalized:
		return "finalized"
	case TurnErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Message role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one user request / assistant response cycle and its evolving
// state. It is created on submit, mutated only by the orchestrator's
// sequential frame dispatch (plus locked hydration patches), and becomes
// immutable once Finalized or Errored.
type Turn struct {
	ID   uuid.UUID
	Role string

	// mu guards Text, Widgets, rev, and widgetRev. Frame dispatch is
	// sequential, but hydration patches land from their own goroutines.
	mu sync.Mutex

	// Text is the visible assistant text.
	Text string

	// Widgets is the live ordered widget list.
	Widgets []layout.Widget

	// Structured is the last committed structured snapshot, nil until a
	// layout frame (or end-of-stream extraction) lands.
	Structured *layout.StructuredResponse

	// Err is set when the turn reaches Errored.
	Err error

	state TurnState

	// raw accumulates every message delta for end-of-stream extraction.
	raw []byte

	// detector holds the turn's sticky structured-mode flag.
	detector structured.Detector

	// cache stages tool-emitted widgets until reconciliation; owned
	// exclusively by this turn and dropped at commit or terminal state.
	cache *layout.Cache

	// statusLog is the transient progress log; never persisted.
	statusLog []string

	// placeholderSet records that the synthesizing placeholder replaced
	// the visible text; it is set at most once per turn.
	placeholderSet bool

	// sawStructured records that a structured response was committed,
	// either from a layout frame or end-of-stream extraction.
	sawStructured bool

	// fallbackUsed guards the single non-streaming fallback request.
	fallbackUsed bool

	// emitter receives this turn's UI-facing progress events.
	emitter Emitter

	// rev increments on every widget commit; widgetRev stamps each widget
	// id with the commit it was last written by, so stale hydration
	// results can be rejected.
	rev       int
	widgetRev map[string]int
}

// newTurn creates a Sent turn for the given user input.
func newTurn() *Turn {
	return &Turn{
		ID:        uuid.New(),
		Role:      RoleAssistant,
		state:     TurnSent,
		cache:     layout.NewCache(),
		widgetRev: make(map[string]int),
		emitter:   NopEmitter{},
	}
}

// State returns the turn's lifecycle state.
func (t *Turn) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StatusLog returns the transient progress messages received so far.
func (t *Turn) StatusLog() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.statusLog))
	copy(out, t.statusLog)
	return out
}

// Snapshot returns the visible text and a copy of the widget list, safe to
// read while hydration is still patching.
func (t *Turn) Snapshot() (string, []layout.Widget) {
	t.mu.Lock()
	defer t.mu.Unlock()
	widgets := make([]layout.Widget, len(t.Widgets))
	copy(widgets, t.Widgets)
	return t.Text, widgets
}

// terminal reports whether the turn reached Finalized or Errored.
func (t *Turn) terminal() bool {
	return t.state == TurnFinalized || t.state == TurnErrored
}

// commitWidgets replaces the live widget list and restamps every widget
// with the new revision. Caller must hold mu.
func (t *Turn) commitWidgets(widgets []layout.Widget) {
	t.rev++
	t.Widgets = widgets
	for _, w := range widgets {
		if w.ID != "" {
			t.widgetRev[w.ID] = t.rev
		}
	}
}
