package tui

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/marketmate/marketmate/internal/chat"
	"github.com/marketmate/marketmate/internal/layout"
)

// turnBufferSize absorbs bursts of frame updates while the UI is busy
// rendering; updates are coalescable, so overflow is dropped best-effort.
const turnBufferSize = 100

// turnEvent is a discriminated union for everything a running turn can
// surface. A single channel keeps the Bubble Tea select logic simple.
type turnEvent struct {
	status  string          // tool progress message (when non-empty)
	text    string          // current visible text (when update is true)
	widgets []layout.Widget // current widget list (when update is true)
	update  bool
	turn    *chat.Turn // final turn (when done is true)
	err     error
	done    bool
}

// Bubble Tea messages derived from turn events.
type turnStartedMsg struct {
	events <-chan turnEvent
	cancel context.CancelFunc
}

type turnUpdateMsg struct {
	text    string
	widgets []layout.Widget
}

type turnStatusMsg struct {
	status string
}

type turnDoneMsg struct {
	turn *chat.Turn
}

type turnErrorMsg struct {
	err error
}

// channelEmitter implements chat.Emitter by forwarding snapshots onto the
// event channel. Sends are best-effort: a full channel drops the update
// rather than stalling frame dispatch.
type channelEmitter struct {
	events chan<- turnEvent
}

func (e *channelEmitter) OnStatus(message string) {
	select {
	case e.events <- turnEvent{status: message}:
	default:
	}
}

func (e *channelEmitter) OnUpdate(t *chat.Turn) {
	text, widgets := t.Snapshot()
	select {
	case e.events <- turnEvent{text: text, widgets: widgets, update: true}:
	default:
	}
}

// Compile-time interface verification.
var _ chat.Emitter = (*channelEmitter)(nil)

// startTurn launches one orchestrated turn in a goroutine. Channel closure
// signals completion; no WaitGroup needed.
func (m *Model) startTurn(query string) tea.Cmd {
	return func() tea.Msg {
		events := make(chan turnEvent, turnBufferSize)
		ctx, cancel := context.WithCancel(m.ctx)

		go func() {
			defer close(events)
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("turn panic recovered", "panic", r)
					select {
					case events <- turnEvent{err: fmt.Errorf("turn panic: %v", r)}:
					default:
					}
				}
			}()

			turn, err := m.orch.SubmitWith(ctx, query, m.threadID, &channelEmitter{events: events})
			if err != nil {
				events <- turnEvent{err: err}
				return
			}
			if turn.State() == chat.TurnErrored {
				events <- turnEvent{turn: turn, done: true, err: turn.Err}
				return
			}
			events <- turnEvent{turn: turn, done: true}
		}()

		return turnStartedMsg{events: events, cancel: cancel}
	}
}

// listenForTurn waits for the next turn event. Empty events are skipped via
// loop instead of recursion.
func listenForTurn(events <-chan turnEvent) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		for {
			event, ok := <-events
			if !ok {
				return nil
			}
			switch {
			case event.done:
				return turnDoneMsg{turn: event.turn}
			case event.err != nil:
				return turnErrorMsg{err: event.err}
			case event.status != "":
				return turnStatusMsg{status: event.status}
			case event.update:
				return turnUpdateMsg{text: event.text, widgets: event.widgets}
			default:
				continue
			}
		}
	}
}
