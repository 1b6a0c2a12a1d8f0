package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/marketmate/marketmate/internal/layout"
	"github.com/marketmate/marketmate/internal/log"
	"github.com/marketmate/marketmate/internal/stream"
	"github.com/marketmate/marketmate/internal/structured"
)

// SynthesizingPlaceholder replaces the visible text, once per turn, as soon
// as the prose stream turns out to be an embedded structured payload.
// Partial JSON must never leak into the transcript.
const SynthesizingPlaceholder = "Putting your answer together…"

// ApologyText is the fixed visible text of an Errored turn.
const ApologyText = "Sorry, something went wrong while fetching your answer. Please try again."

// fallbackWidgetType tags tool widgets whose event named no explicit type.
const fallbackWidgetType = "tool_result"

// ErrTurnActive is returned when a submit arrives while a turn is running.
var ErrTurnActive = errors.New("a turn is already active")

// ErrEmptyMessage is returned for blank submits.
var ErrEmptyMessage = errors.New("message is empty")

// readBufferSize is the transport read granularity. Frame boundaries do not
// align with reads; the decoder carries partial blocks across them.
const readBufferSize = 4096

// Emitter receives UI-facing progress while a turn streams. Implementations
// must be fast or best-effort; they are called from the sequential frame
// dispatch path.
type Emitter interface {
	// OnStatus delivers a transient tool progress message.
	OnStatus(message string)

	// OnUpdate signals that the turn's visible text or widgets changed.
	OnUpdate(t *Turn)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) OnStatus(string) {}
func (NopEmitter) OnUpdate(*Turn)  {}

// Hydrator enriches a single widget with externally fetched sub-resources.
// Hydrate returns the patched widget and true when it changed anything;
// (zero, false) when the widget is not eligible or nothing resolved.
type Hydrator interface {
	Hydrate(ctx context.Context, w layout.Widget) (layout.Widget, bool)
}

// Orchestrator drives turn lifecycles: Idle → Sent → Streaming → Finalized,
// with Errored as the alternate terminal. One turn is active at a time;
// its frames are dispatched strictly sequentially in arrival order.
type Orchestrator struct {
	transport  Transport
	reconciler *layout.Reconciler
	hydrator   Hydrator // nil disables enrichment
	emitter    Emitter
	logger     log.Logger

	mu     sync.Mutex
	active *Turn

	// wg tracks in-flight hydration goroutines for clean shutdown.
	wg sync.WaitGroup
}

// NewOrchestrator wires the orchestrator. hydrator may be nil.
func NewOrchestrator(transport Transport, hydrator Hydrator, emitter Emitter, logger log.Logger) *Orchestrator {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Orchestrator{
		transport:  transport,
		reconciler: layout.NewReconciler(logger),
		hydrator:   hydrator,
		emitter:    emitter,
		logger:     logger,
	}
}

// Submit runs one full turn for the given user input and blocks until the
// turn reaches a terminal state. Callers wanting live progress run Submit
// in a goroutine and watch the Emitter.
//
// Returns ErrEmptyMessage for blank input and ErrTurnActive while another
// turn is running. The returned turn is terminal; its Err field carries the
// failure when the state is Errored.
func (o *Orchestrator) Submit(ctx context.Context, message, threadID string) (*Turn, error) {
	return o.SubmitWith(ctx, message, threadID, o.emitter)
}

// SubmitWith is Submit with a per-turn emitter, for callers that watch each
// turn through its own channel.
func (o *Orchestrator) SubmitWith(ctx context.Context, message, threadID string, emitter Emitter) (*Turn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}

	turn := newTurn()
	turn.emitter = emitter
	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return nil, ErrTurnActive
	}
	o.active = turn
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.active = nil
		o.mu.Unlock()
	}()

	req := Request{Message: message, ThreadID: threadID}
	o.logger.Info("turn submitted", "turn", turn.ID, "thread", threadID)

	streamErr := o.runStream(ctx, turn, req)
	o.finish(ctx, turn, req, streamErr)
	return turn, nil
}

// Wait blocks until all hydration goroutines have finished. Intended for
// shutdown and tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// runStream opens the SSE endpoint and dispatches frames until the stream
// closes. The returned error is a transport-level failure; a cleanly closed
// stream returns nil no matter what it carried.
func (o *Orchestrator) runStream(ctx context.Context, turn *Turn, req Request) error {
	body, err := o.transport.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	turn.mu.Lock()
	turn.state = TurnStreaming
	turn.mu.Unlock()

	buf := make([]byte, readBufferSize)
	carry := ""
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			var frames []stream.Frame
			frames, carry = stream.Decode(carry, string(buf[:n]))
			for _, frame := range frames {
				o.dispatch(ctx, turn, frame)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}

// dispatch routes one frame per its event label. Unrecognized labels are
// ignored for forward compatibility.
func (o *Orchestrator) dispatch(ctx context.Context, turn *Turn, frame stream.Frame) {
	switch frame.Event {
	case "status":
		o.handleStatus(turn, frame)
	case "visual":
		o.handleVisual(turn, frame)
	case "layout":
		o.handleLayout(ctx, turn, frame)
	case stream.DefaultEvent:
		o.handleMessage(turn, frame)
	default:
		o.logger.Debug("ignoring unknown frame", "event", frame.Event)
	}
}

// handleStatus appends to the transient progress log.
func (o *Orchestrator) handleStatus(turn *Turn, frame stream.Frame) {
	payload, ok := frame.Data.(map[string]any)
	if !ok {
		return
	}
	message, _ := payload["message"].(string)
	if message == "" {
		return
	}

	turn.mu.Lock()
	turn.statusLog = append(turn.statusLog, message)
	turn.mu.Unlock()
	turn.emitter.OnStatus(message)
}

// handleVisual stages a tool-emitted widget and optimistically appends it
// to the live list so the UI can show it before the final layout lands.
func (o *Orchestrator) handleVisual(turn *Turn, frame stream.Frame) {
	payload, ok := frame.Data.(map[string]any)
	if !ok {
		o.logger.Warn("dropping malformed visual frame")
		return
	}

	typeTag, _ := payload["type"].(string)
	if typeTag == "" {
		typeTag, _ = payload["tool"].(string)
	}
	if typeTag == "" {
		typeTag = fallbackWidgetType
	}

	body := payload["payload"]
	if body == nil {
		body = payload["output"]
	}

	widget := layout.Widget{ID: layout.NewID(), Type: typeTag}
	switch v := body.(type) {
	case nil:
	case map[string]any:
		widget.Data = v
	default:
		widget.Data = map[string]any{"value": v}
	}

	turn.mu.Lock()
	turn.cache.Stage(widget)
	turn.commitWidgets(append(turn.Widgets, widget))
	turn.mu.Unlock()

	o.logger.Debug("staged tool widget", "turn", turn.ID, "type", typeTag)
	turn.emitter.OnUpdate(turn)
}

// handleLayout validates the frame as a structured response and reconciles
// it. Frames without a list-typed widget collection are dropped silently.
func (o *Orchestrator) handleLayout(ctx context.Context, turn *Turn, frame stream.Frame) {
	sr, ok := structured.DecodeLayout([]byte(frame.Raw))
	if !ok {
		o.logger.Warn("dropping layout frame without widget list", "turn", turn.ID)
		return
	}
	o.commitStructured(ctx, turn, sr)
}

// handleMessage accumulates prose deltas. Once the detector trips, the
// visible text is replaced, exactly once, by the synthesizing placeholder
// instead of leaking partial JSON.
func (o *Orchestrator) handleMessage(turn *Turn, frame stream.Frame) {
	payload, ok := frame.Data.(map[string]any)
	if !ok {
		return
	}
	if marker, _ := payload["event"].(string); marker == "end" {
		return
	}
	chunk, _ := payload["chunk"].(string)
	if chunk == "" {
		return
	}

	turn.mu.Lock()
	turn.raw = append(turn.raw, chunk...)
	if turn.detector.Observe(chunk) {
		if !turn.placeholderSet {
			turn.Text = SynthesizingPlaceholder
			turn.placeholderSet = true
		}
	} else {
		turn.Text += cleanChunk(chunk)
	}
	turn.mu.Unlock()

	turn.emitter.OnUpdate(turn)
}

// commitStructured reconciles a structured response into the turn and
// starts hydration for the widgets that need it. Each commit treats the
// previously committed widget list as its live baseline.
func (o *Orchestrator) commitStructured(ctx context.Context, turn *Turn, sr layout.StructuredResponse) {
	turn.mu.Lock()
	result := o.reconciler.Reconcile(turn.Widgets, turn.cache, sr)
	turn.commitWidgets(result.Widgets)
	if result.Summary != "" {
		turn.Text = result.Summary
	}
	turn.cache.Clear()
	turn.sawStructured = true
	turn.Structured = &sr

	type launch struct {
		widget layout.Widget
		rev    int
	}
	var launches []launch
	if o.hydrator != nil {
		for _, w := range turn.Widgets {
			if w.ID != "" {
				launches = append(launches, launch{widget: w, rev: turn.widgetRev[w.ID]})
			}
		}
	}
	turn.mu.Unlock()

	turn.emitter.OnUpdate(turn)

	// Widgets hydrate independently and concurrently; no cross-widget
	// coordination.
	for _, l := range launches {
		o.wg.Add(1)
		go func(w layout.Widget, rev int) {
			defer o.wg.Done()
			patched, changed := o.hydrator.Hydrate(ctx, w)
			if !changed {
				return
			}
			o.applyHydration(turn, w.ID, rev, patched)
		}(l.widget, l.rev)
	}
}

// applyHydration patches a hydrated widget back into the turn, unless a
// newer commit superseded the payload the fetches were computed against.
func (o *Orchestrator) applyHydration(turn *Turn, id string, rev int, patched layout.Widget) {
	turn.mu.Lock()
	applied := false
	if turn.state != TurnErrored {
		if turn.widgetRev[id] == rev {
			for i := range turn.Widgets {
				if turn.Widgets[i].ID == id {
					turn.Widgets[i] = patched
					applied = true
					break
				}
			}
		} else {
			o.logger.Debug("discarding stale hydration result", "widget", id)
		}
	}
	turn.mu.Unlock()

	if applied {
		turn.emitter.OnUpdate(turn)
	}
}

// finish closes out the turn after the stream ended: end-of-stream
// structured extraction, finalization, the one-shot fallback, or the error
// terminal.
func (o *Orchestrator) finish(ctx context.Context, turn *Turn, req Request, streamErr error) {
	turn.mu.Lock()
	raw := string(turn.raw)
	sawStructured := turn.sawStructured
	turn.mu.Unlock()

	// The stream may have carried the layout inside the prose; with no
	// layout frame, re-scan the whole accumulated text once.
	if !sawStructured && raw != "" {
		if sr, ok := structured.Extract(raw); ok {
			o.logger.Info("recovered structured payload from raw text", "turn", turn.ID)
			o.commitStructured(ctx, turn, sr)
			sawStructured = true
		}
	}

	turn.mu.Lock()
	usable := sawStructured || strings.TrimSpace(turn.Text) != "" || len(turn.Widgets) > 0
	turn.mu.Unlock()

	switch {
	case sawStructured:
		// Already-merged widgets stay untouched; only the text finalizes.
		if streamErr != nil {
			o.logger.Warn("stream failed after structured response; keeping merged state",
				"turn", turn.ID, "error", streamErr)
		}
		o.finalizeText(turn, raw)
		o.finalize(turn)

	case streamErr == nil && usable:
		o.finalizeText(turn, raw)
		o.finalize(turn)

	default:
		// Unproductive or broken stream: exactly one non-streaming
		// fallback request, then terminal either way.
		if streamErr != nil {
			o.logger.Warn("stream transport failed; trying fallback", "turn", turn.ID, "error", streamErr)
		} else {
			o.logger.Info("stream yielded nothing usable; trying fallback", "turn", turn.ID)
		}
		o.fallback(ctx, turn, req, streamErr)
	}
}

// finalizeText settles the visible text: the structured summary when
// present, otherwise the cleaned raw text.
func (o *Orchestrator) finalizeText(turn *Turn, raw string) {
	turn.mu.Lock()
	defer turn.mu.Unlock()

	if turn.Structured != nil && turn.Structured.Summary != "" {
		turn.Text = turn.Structured.Summary
		return
	}
	if cleaned := structured.StripFences(raw); cleaned != "" {
		turn.Text = cleaned
	} else {
		turn.Text = strings.TrimSpace(turn.Text)
	}
}

// fallback issues the single non-streaming request and applies the result
// the way a layout frame would be applied.
func (o *Orchestrator) fallback(ctx context.Context, turn *Turn, req Request, streamErr error) {
	turn.mu.Lock()
	if turn.fallbackUsed {
		turn.mu.Unlock()
		o.fail(turn, streamErr)
		return
	}
	turn.fallbackUsed = true
	turn.mu.Unlock()

	resp, err := o.transport.Invoke(ctx, req)
	if err != nil {
		o.logger.Error("fallback request failed", "turn", turn.ID, "error", err)
		if streamErr != nil {
			err = fmt.Errorf("%w (stream: %v)", err, streamErr)
		}
		o.fail(turn, err)
		return
	}

	if resp.Structured != nil && resp.Structured.Responses != nil {
		o.commitStructured(ctx, turn, *resp.Structured)
	}

	turn.mu.Lock()
	if turn.Structured != nil && turn.Structured.Summary != "" {
		turn.Text = turn.Structured.Summary
	} else if cleaned := structured.StripFences(resp.Content); cleaned != "" {
		turn.Text = cleaned
	}
	turn.mu.Unlock()

	o.finalize(turn)
}

// finalize moves the turn to Finalized and releases its cache.
func (o *Orchestrator) finalize(turn *Turn) {
	turn.mu.Lock()
	turn.state = TurnFinalized
	turn.cache.Clear()
	turn.mu.Unlock()

	o.logger.Info("turn finalized", "turn", turn.ID)
	turn.emitter.OnUpdate(turn)
}

// fail moves the turn to Errored with the fixed apology text. No automatic
// retries beyond the single fallback happen.
func (o *Orchestrator) fail(turn *Turn, err error) {
	turn.mu.Lock()
	turn.Text = ApologyText
	turn.Err = err
	turn.state = TurnErrored
	turn.cache.Clear()
	turn.mu.Unlock()

	o.logger.Error("turn errored", "turn", turn.ID, "error", err)
	turn.emitter.OnUpdate(turn)
}

// cleanChunk removes stray fence markers from a prose delta before it is
// appended to the visible text.
func cleanChunk(chunk string) string {
	return strings.ReplaceAll(chunk, "```", "")
}
