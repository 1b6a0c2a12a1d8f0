// Package tui provides the Bubble Tea terminal interface for marketmate.
// It is a rendering collaborator only: turn semantics live in internal/chat
// and this package just submits input and draws whatever the turn settles
// on.
package tui

import (
	"context"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"

	"github.com/marketmate/marketmate/internal/chat"
	"github.com/marketmate/marketmate/internal/layout"
	"github.com/marketmate/marketmate/internal/log"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput     State = iota // Awaiting user input
	StateStreaming              // A turn is running
)

// Memory bounds to prevent unbounded growth.
const (
	maxMessages = 100
	maxHistory  = 100
)

// Message role constants for display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2
	helpLines      = 1
	promptLines    = 1
	minViewport    = 3
)

// Message is one rendered transcript entry. Assistant entries carry the
// turn's final widget list alongside the text.
type Message struct {
	Role    string
	Text    string
	Widgets []layout.Widget
}

// Model is the Bubble Tea model for the marketmate terminal interface.
type Model struct {
	// Input (textarea for multi-line support)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state State

	// Output
	spinner  spinner.Model
	viewBuf  strings.Builder
	messages []Message

	// Live view of the running turn
	liveText    string
	liveWidgets []layout.Widget
	toolStatus  string

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar
	help help.Model
	keys keyMap

	// Turn event plumbing; the channel closes when the turn terminates.
	turnEvents <-chan turnEvent
	turnCancel context.CancelFunc

	// Dependencies
	orch     *chat.Orchestrator
	threadID string
	logger   log.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	// Dimensions
	width  int
	height int

	styles   Styles
	markdown *markdownRenderer
}

// New creates the TUI model around a ready orchestrator.
func New(ctx context.Context, orch *chat.Orchestrator, threadID string, logger log.Logger) *Model {
	input := textarea.New()
	input.Placeholder = "Ask about the market..."
	input.SetHeight(1)
	input.ShowLineNumbers = false
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(ctx)

	return &Model{
		input:    input,
		spinner:  sp,
		viewport: viewport.New(),
		help:     help.New(),
		keys:     newKeyMap(),
		orch:     orch,
		threadID: threadID,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		styles:   DefaultStyles(),
		markdown: newMarkdownRenderer(80),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.input.Focus(), m.spinner.Tick)
}

// addMessage appends a transcript entry and enforces the maxMessages bound.
func (m *Model) addMessage(msg Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// pushHistory records submitted input for up/down recall.
func (m *Model) pushHistory(line string) {
	m.history = append(m.history, line)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.historyIdx = len(m.history)
}
