package layout

import (
	"reflect"
	"testing"

	"github.com/marketmate/marketmate/internal/log"
)

func newTestReconciler() *Reconciler {
	return NewReconciler(log.NewNop())
}

// The flow behind this test: a tool emits a rich price_quotes widget, the
// final layout names the same type with a thin stub plus a new follow_up.
// The tool payload must survive untouched and the follow_up must keep
// its data.
func TestReconcile_AuthoritativeDonorWinsVerbatim(t *testing.T) {
	t.Parallel()

	quotes := Widget{
		ID:   "w1",
		Type: TypePriceQuotes,
		Data: map[string]any{"quotes": []any{map[string]any{"asset": "bitcoin", "price": 67000.0}}},
	}
	cache := NewCache()
	cache.Stage(quotes)
	live := []Widget{quotes} // optimistic append mirrors the staged copy

	incoming := StructuredResponse{
		Summary: "BTC snapshot",
		Responses: []Widget{
			{Type: TypePriceQuotes},
			{Type: TypeFollowUp, Data: map[string]any{"suggestions": []any{"Compare to ETH"}}},
		},
	}

	got := newTestReconciler().Reconcile(live, cache, incoming)

	if got.Summary != "BTC snapshot" {
		t.Errorf("summary = %q", got.Summary)
	}
	if len(got.Widgets) != 2 {
		t.Fatalf("got %d widgets, want 2: %+v", len(got.Widgets), got.Widgets)
	}
	if !reflect.DeepEqual(got.Widgets[0], quotes) {
		t.Errorf("price_quotes widget changed: %+v", got.Widgets[0])
	}
	if got.Widgets[1].Type != TypeFollowUp {
		t.Errorf("second widget = %+v, want follow_up", got.Widgets[1])
	}
	suggestions, _ := got.Widgets[1].Data["suggestions"].([]any)
	if len(suggestions) != 1 || suggestions[0] != "Compare to ETH" {
		t.Errorf("follow_up data = %v", got.Widgets[1].Data)
	}
	// The staged copy donated through the live list; it must not resurface.
	if left := cache.Leftovers(); len(left) != 0 {
		t.Errorf("cache leftovers = %+v, want none", left)
	}
}

func TestReconcile_AuthoritativeIDRefreshOnlyWhenProvided(t *testing.T) {
	t.Parallel()

	donor := Widget{ID: "old", Type: TypeChart, Data: map[string]any{"series": []any{1.0}}}

	tests := []struct {
		name       string
		incomingID string
		wantID     string
	}{
		{"incoming id wins", "new", "new"},
		{"blank incoming keeps donor id", "", "old"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cache := NewCache()
			cache.Stage(donor)

			got := newTestReconciler().Reconcile(nil, cache, StructuredResponse{
				Responses: []Widget{{ID: tt.incomingID, Type: TypeChart}},
			})
			if len(got.Widgets) != 1 {
				t.Fatalf("got %d widgets, want 1", len(got.Widgets))
			}
			if got.Widgets[0].ID != tt.wantID {
				t.Errorf("id = %q, want %q", got.Widgets[0].ID, tt.wantID)
			}
			if got.Widgets[0].Data["series"] == nil {
				t.Error("donor data dropped")
			}
		})
	}
}

func TestReconcile_FreeFormMergesFieldByField(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	cache.Stage(Widget{
		ID:      "t1",
		Type:    TypeText,
		Content: "draft",
		Data:    map[string]any{"kept": true},
	})

	got := newTestReconciler().Reconcile(nil, cache, StructuredResponse{
		Responses: []Widget{{Type: TypeText, Content: "final wording"}},
	})

	if len(got.Widgets) != 1 {
		t.Fatalf("got %d widgets, want 1", len(got.Widgets))
	}
	w := got.Widgets[0]
	if w.Content != "final wording" {
		t.Errorf("content = %q, want incoming to win", w.Content)
	}
	if w.Data["kept"] != true {
		t.Errorf("donor data dropped: %v", w.Data)
	}
	if w.ID != "t1" {
		t.Errorf("id = %q, want donor id kept", w.ID)
	}
}

func TestReconcile_NoDonorAssignsID(t *testing.T) {
	t.Parallel()

	got := newTestReconciler().Reconcile(nil, NewCache(), StructuredResponse{
		Responses: []Widget{{Type: TypeText, Content: "hi"}},
	})

	if len(got.Widgets) != 1 {
		t.Fatalf("got %d widgets, want 1", len(got.Widgets))
	}
	if got.Widgets[0].ID == "" {
		t.Error("widget committed without an id")
	}
}

// Two same-typed incoming widgets claim donors strictly in staging order:
// first unconsumed match, nothing cleverer.
func TestReconcile_SameTypeFirstUnconsumedMatch(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	cache.Stage(Widget{ID: "c1", Type: TypeChart, Data: map[string]any{"asset": "bitcoin"}})
	cache.Stage(Widget{ID: "c2", Type: TypeChart, Data: map[string]any{"asset": "ethereum"}})

	got := newTestReconciler().Reconcile(nil, cache, StructuredResponse{
		Responses: []Widget{{Type: TypeChart}, {Type: TypeChart}},
	})

	if len(got.Widgets) != 2 {
		t.Fatalf("got %d widgets, want 2", len(got.Widgets))
	}
	if got.Widgets[0].Data["asset"] != "bitcoin" || got.Widgets[1].Data["asset"] != "ethereum" {
		t.Errorf("donor order broken: %+v", got.Widgets)
	}
}

func TestReconcile_LeftoversLiveThenCache(t *testing.T) {
	t.Parallel()

	live := []Widget{{ID: "l1", Type: TypeNewsList}}
	cache := NewCache()
	cache.Stage(Widget{ID: "s1", Type: TypeWatchlist})

	got := newTestReconciler().Reconcile(live, cache, StructuredResponse{
		Responses: []Widget{{Type: TypeText, Content: "hello"}},
	})

	if len(got.Widgets) != 3 {
		t.Fatalf("got %d widgets, want 3: %+v", len(got.Widgets), got.Widgets)
	}
	if got.Widgets[0].Type != TypeText {
		t.Errorf("merged list not first: %+v", got.Widgets[0])
	}
	if got.Widgets[1].ID != "l1" || got.Widgets[2].ID != "s1" {
		t.Errorf("leftover order = [%s %s], want [l1 s1]", got.Widgets[1].ID, got.Widgets[2].ID)
	}
}

func TestReconcile_LiveDonorPreferredOverCache(t *testing.T) {
	t.Parallel()

	live := []Widget{{ID: "live", Type: TypeTable, Data: map[string]any{"rows": 3.0}}}
	cache := NewCache()
	cache.Stage(Widget{ID: "staged", Type: TypeTable, Data: map[string]any{"rows": 9.0}})

	got := newTestReconciler().Reconcile(live, cache, StructuredResponse{
		Responses: []Widget{{Type: TypeTable}},
	})

	if got.Widgets[0].ID != "live" {
		t.Errorf("donor id = %q, want the live copy", got.Widgets[0].ID)
	}
	// The staged table was not claimed, so it stays visible as a leftover.
	if len(got.Widgets) != 2 || got.Widgets[1].ID != "staged" {
		t.Errorf("widgets = %+v, want staged leftover second", got.Widgets)
	}
}

func TestReconcile_EmptyIncomingKeepsEverything(t *testing.T) {
	t.Parallel()

	live := []Widget{{ID: "l1", Type: TypeText}}
	cache := NewCache()
	cache.Stage(Widget{ID: "s1", Type: TypeChart})

	got := newTestReconciler().Reconcile(live, cache, StructuredResponse{})

	if len(got.Widgets) != 2 {
		t.Fatalf("got %d widgets, want 2 leftovers", len(got.Widgets))
	}
	if got.Widgets[0].ID != "l1" || got.Widgets[1].ID != "s1" {
		t.Errorf("widgets = %+v", got.Widgets)
	}
}
