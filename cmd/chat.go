package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"

	"github.com/marketmate/marketmate/internal/tui"
)

// runChat initializes and starts the interactive chat with Bubble Tea TUI.
func runChat() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The TUI installs its own per-turn emitter, so the orchestrator is
	// built without one.
	orch, cfg, logger, err := buildOrchestrator(nil)
	if err != nil {
		return err
	}
	defer orch.Wait()

	logger.Info("starting chat", "server", cfg.ServerURL)

	model := tui.New(ctx, orch, newThreadID(), logger)
	program := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}
