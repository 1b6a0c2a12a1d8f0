package layout

import (
	"github.com/marketmate/marketmate/internal/log"
)

// Result is the committed outcome of one reconciliation pass.
type Result struct {
	// Widgets is the merged list followed by unmatched donors.
	Widgets []Widget

	// Summary is the structured summary, empty when the layout carried none.
	Summary string
}

// Reconciler merges incoming structured layouts against the widgets a turn
// already knows about. It is stateless; per-turn state lives in the live
// list and cache passed to Reconcile.
type Reconciler struct {
	logger log.Logger
}

// NewReconciler returns a Reconciler that logs merge decisions at debug
// level.
func NewReconciler(logger log.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile merges structured.Responses against the turn's live widgets and
// its staging cache.
//
// For each incoming widget, in order, a donor of the same type is looked up:
// first among unconsumed live widgets, then among unconsumed cache entries.
// Any match is consumed, so a donor feeds at most one incoming widget per
// pass. Authoritative types keep the donor's data, options, content, and
// chart subtype verbatim; only the id may be refreshed, and only when the
// incoming side provides one. Free-form types (and authoritative widgets
// without a donor) merge field by field with the incoming side winning.
//
// Donors that no incoming widget claimed are appended after the merged
// list, live ones first, each group in its original order. The cache is
// cleared by the caller on commit.
//
// Reconcile may run more than once per turn: each pass treats the
// previously committed widget list as its live baseline.
func (r *Reconciler) Reconcile(live []Widget, cache *Cache, structured StructuredResponse) Result {
	liveConsumed := make([]bool, len(live))

	takeLive := func(widgetType string) (Widget, bool) {
		for i := range live {
			if !liveConsumed[i] && live[i].Type == widgetType {
				liveConsumed[i] = true
				// The staging cache may hold the same logical widget;
				// retire that copy so it cannot donate again or linger
				// as a leftover.
				cache.ConsumeID(live[i].ID)
				return live[i], true
			}
		}
		return Widget{}, false
	}

	merged := make([]Widget, 0, len(structured.Responses))
	for _, incoming := range structured.Responses {
		donor, found := takeLive(incoming.Type)
		if !found {
			if donor, found = cache.Take(incoming.Type); found {
				// Mirror of the live-path dedup: retire the optimistic
				// live copy of the same logical widget.
				for i := range live {
					if live[i].ID != "" && live[i].ID == donor.ID {
						liveConsumed[i] = true
					}
				}
			}
		}

		switch {
		case found && Authoritative(incoming.Type):
			// The tool payload is richer than the layout's stub for these
			// types; never let a thinner incoming widget overwrite it.
			kept := donor
			if incoming.ID != "" {
				kept.ID = incoming.ID
			}
			kept.Type = incoming.Type
			merged = append(merged, kept)
			r.logger.Debug("reconcile kept donor payload",
				"type", incoming.Type, "id", kept.ID)

		case found:
			merged = append(merged, mergeFields(donor, incoming))

		default:
			w := incoming
			if w.ID == "" {
				w.ID = NewID()
			}
			merged = append(merged, w)
		}
	}

	// Donors nothing claimed stay visible after the merged list,
	// preserving their relative order.
	for i := range live {
		if !liveConsumed[i] {
			merged = append(merged, live[i])
		}
	}
	merged = append(merged, cache.Leftovers()...)

	r.logger.Debug("reconcile committed",
		"incoming", len(structured.Responses),
		"widgets", len(merged),
		"summary", structured.Summary != "")

	return Result{Widgets: merged, Summary: structured.Summary}
}

// mergeFields merges an incoming widget over a donor field by field: the
// incoming value wins wherever present, otherwise the donor's survives.
func mergeFields(donor, incoming Widget) Widget {
	out := donor

	switch {
	case incoming.ID != "":
		out.ID = incoming.ID
	case donor.ID != "":
		out.ID = donor.ID
	default:
		out.ID = NewID()
	}

	out.Type = incoming.Type
	if incoming.Content != "" {
		out.Content = incoming.Content
	}
	if incoming.Data != nil {
		out.Data = incoming.Data
	}
	if incoming.ChartType != "" {
		out.ChartType = incoming.ChartType
	}
	if incoming.Options != nil {
		out.Options = incoming.Options
	}
	return out
}
