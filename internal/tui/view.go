package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/marketmate/marketmate/internal/layout"
)

// View implements tea.Model. AltScreen with a viewport gives scrollable
// history.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	m.viewBuf.WriteString(m.viewport.View())
	m.viewBuf.WriteString("\n")
	m.viewBuf.WriteString(m.renderSeparator())
	m.viewBuf.WriteString("\n")
	m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	m.viewBuf.WriteString(m.input.View())
	m.viewBuf.WriteString("\n")
	m.viewBuf.WriteString(m.renderSeparator())
	m.viewBuf.WriteString("\n")
	m.viewBuf.WriteString(m.help.View(m.keys))

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the transcript from messages and the
// live turn state.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	b.WriteString(m.styles.RenderBanner())
	b.WriteString("\n")

	for _, msg := range m.messages {
		switch msg.Role {
		case roleUser:
			b.WriteString(m.styles.User.Render("You> "))
			b.WriteString(msg.Text)
		case roleAssistant:
			b.WriteString(m.styles.Assistant.Render("Market> "))
			b.WriteString(m.markdown.Render(msg.Text))
			if block := m.renderWidgets(msg.Widgets); block != "" {
				b.WriteString("\n")
				b.WriteString(block)
			}
		case roleSystem:
			b.WriteString(m.styles.System.Render(msg.Text))
		case roleError:
			b.WriteString(m.styles.Error.Render("Error: " + msg.Text))
		}
		b.WriteString("\n\n")
	}

	if m.state == StateStreaming {
		if m.liveText != "" {
			b.WriteString(m.styles.Assistant.Render("Market> "))
			b.WriteString(m.liveText)
			b.WriteString("\n")
		}
		if block := m.renderWidgets(m.liveWidgets); block != "" {
			b.WriteString(block)
			b.WriteString("\n")
		}
		b.WriteString(m.spinner.View())
		if m.toolStatus != "" {
			b.WriteString(" ")
			b.WriteString(m.styles.System.Render(m.toolStatus))
		}
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

// renderWidgets draws each widget as a titled text block. Rendering is
// deliberately plain: one line per scalar data field, follow-up suggestions
// as a bullet list.
func (m *Model) renderWidgets(widgets []layout.Widget) string {
	if len(widgets) == 0 {
		return ""
	}

	var b strings.Builder
	for i, w := range widgets {
		if i > 0 {
			b.WriteString("\n")
		}
		title := strings.ReplaceAll(w.Type, "_", " ")
		if w.ChartType != "" {
			title += " (" + w.ChartType + ")"
		}
		b.WriteString(m.styles.WidgetTitle.Render("[" + title + "]"))
		b.WriteString("\n")

		if w.Content != "" {
			b.WriteString(w.Content)
			b.WriteString("\n")
		}

		if w.Type == layout.TypeFollowUp {
			for _, s := range suggestionList(w.Data) {
				b.WriteString("  • " + s + "\n")
			}
			continue
		}

		for _, line := range scalarLines(w.Data) {
			b.WriteString("  " + line + "\n")
		}
		for _, notice := range noticeList(w.Data) {
			b.WriteString(m.styles.System.Render("  ! " + notice))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// scalarLines flattens the top-level scalar fields of a data bag into
// "key: value" lines, sorted for stable output. Internal markers and nested
// structures are skipped; widgets render those themselves in the full UI.
func scalarLines(data map[string]any) []string {
	var lines []string
	for k, v := range data {
		if strings.HasPrefix(k, "_") || k == "errors" {
			continue
		}
		switch v.(type) {
		case string, float64, int, bool:
			lines = append(lines, fmt.Sprintf("%s: %v", k, v))
		}
	}
	sort.Strings(lines)
	return lines
}

func suggestionList(data map[string]any) []string {
	raw, _ := data["suggestions"].([]any)
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func noticeList(data map[string]any) []string {
	var out []string
	switch notices := data["errors"].(type) {
	case []string:
		out = notices
	case []any:
		for _, v := range notices {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// renderSeparator draws a horizontal line across the window.
func (m *Model) renderSeparator() string {
	width := max(m.width, 1)
	return m.styles.Separator.Render(strings.Repeat("─", width))
}
