package chat

import (
	"testing"

	"github.com/marketmate/marketmate/internal/layout"
)

func TestTurnState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state TurnState
		want  string
	}{
		{TurnIdle, "idle"},
		{TurnSent, "sent"},
		{TurnStreaming, "streaming"},
		{TurnFinalized, "finalized"},
		{TurnErrored, "errored"},
		{TurnState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("TurnState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

// Snapshot hands out copies; callers must not be able to mutate the live
// list through the returned slice.
func TestTurn_SnapshotIsolation(t *testing.T) {
	t.Parallel()

	turn := newTurn()
	turn.mu.Lock()
	turn.commitWidgets([]layout.Widget{{ID: "w1", Type: layout.TypeText, Content: "original"}})
	turn.mu.Unlock()

	_, widgets := turn.Snapshot()
	widgets[0].Content = "mutated"

	_, again := turn.Snapshot()
	if again[0].Content != "original" {
		t.Errorf("snapshot mutation leaked into the turn: %+v", again[0])
	}
}

func TestTurn_CommitWidgetsBumpsRev(t *testing.T) {
	t.Parallel()

	turn := newTurn()
	w := layout.Widget{ID: "w1", Type: layout.TypeChart}

	turn.mu.Lock()
	turn.commitWidgets([]layout.Widget{w})
	first := turn.widgetRev["w1"]
	turn.commitWidgets([]layout.Widget{w})
	second := turn.widgetRev["w1"]
	turn.mu.Unlock()

	if second <= first {
		t.Errorf("rev did not advance: %d then %d", first, second)
	}
}
