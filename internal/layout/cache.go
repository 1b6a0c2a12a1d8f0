package layout

// Cache stages the widgets a turn receives from live tool events until the
// final layout arrives. Each entry can be consumed as a merge donor at most
// once. A Cache belongs to exactly one turn: the orchestrator creates it
// when the turn is sent and clears it after reconciliation or when the turn
// reaches a terminal state. It is not safe for concurrent use; turn frame
// processing is strictly sequential.
type Cache struct {
	entries []cacheEntry
}

type cacheEntry struct {
	widget   Widget
	consumed bool
}

// NewCache returns an empty per-turn staging cache.
func NewCache() *Cache {
	return &Cache{}
}

// Stage appends a tool-emitted widget to the cache.
func (c *Cache) Stage(w Widget) {
	c.entries = append(c.entries, cacheEntry{widget: w})
}

// Take returns the first unconsumed staged widget of the given type and
// marks it consumed. The second return is false when no donor is available.
func (c *Cache) Take(widgetType string) (Widget, bool) {
	for i := range c.entries {
		if !c.entries[i].consumed && c.entries[i].widget.Type == widgetType {
			c.entries[i].consumed = true
			return c.entries[i].widget, true
		}
	}
	return Widget{}, false
}

// ConsumeID marks any staged entry with the given widget id consumed.
// A tool widget is staged and optimistically appended to the live list at
// the same time; when the live copy is claimed as a donor, the staged copy
// must not resurface as a leftover.
func (c *Cache) ConsumeID(id string) {
	if id == "" {
		return
	}
	for i := range c.entries {
		if c.entries[i].widget.ID == id {
			c.entries[i].consumed = true
		}
	}
}

// Leftovers returns the staged widgets that were never consumed, in staging
// order.
func (c *Cache) Leftovers() []Widget {
	var out []Widget
	for _, e := range c.entries {
		if !e.consumed {
			out = append(out, e.widget)
		}
	}
	return out
}

// Len reports the number of staged entries, consumed or not.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Clear drops every entry. Called on reconciliation commit and on turn
// teardown.
func (c *Cache) Clear() {
	c.entries = nil
}
