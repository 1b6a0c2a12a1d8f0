package tui

import (
	"context"
	"errors"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/marketmate/marketmate/internal/chat"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4)
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state == StateStreaming {
			m.rebuildViewportContent()
		}
		return m, cmd

	case turnStartedMsg:
		m.turnEvents = msg.events
		m.turnCancel = msg.cancel
		m.state = StateStreaming
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(msg.events)

	case turnStatusMsg:
		m.toolStatus = msg.status
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(m.turnEvents)

	case turnUpdateMsg:
		m.toolStatus = ""
		m.liveText = msg.text
		m.liveWidgets = msg.widgets
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(m.turnEvents)

	case turnDoneMsg:
		m.endTurn()
		if msg.turn != nil {
			text, widgets := msg.turn.Snapshot()
			role := roleAssistant
			if msg.turn.State() == chat.TurnErrored {
				role = roleError
			}
			m.addMessage(Message{Role: role, Text: text, Widgets: widgets})
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()

	case turnErrorMsg:
		m.endTurn()
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
		case errors.Is(msg.err, chat.ErrTurnActive):
			m.addMessage(Message{Role: roleSystem, Text: "A request is already running."})
		default:
			m.addMessage(Message{Role: roleError, Text: msg.err.Error()})
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// endTurn resets per-turn UI state.
func (m *Model) endTurn() {
	m.state = StateInput
	m.toolStatus = ""
	m.liveText = ""
	m.liveWidgets = nil
	if m.turnCancel != nil {
		m.turnCancel()
		m.turnCancel = nil
	}
	m.turnEvents = nil
}

// submit sends the textarea content as a new turn.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" || m.state == StateStreaming {
		return m, nil
	}

	switch query {
	case cmdClear:
		m.messages = nil
		m.input.Reset()
		m.rebuildViewportContent()
		return m, nil
	case cmdExit, cmdQuit:
		return m, m.quit()
	}

	m.addMessage(Message{Role: roleUser, Text: query})
	m.pushHistory(query)
	m.input.Reset()
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, tea.Batch(m.startTurn(query), m.spinner.Tick)
}

// quit cancels everything and leaves the program.
func (m *Model) quit() tea.Cmd {
	if m.turnCancel != nil {
		m.turnCancel()
	}
	m.cancel()
	return tea.Quit
}
