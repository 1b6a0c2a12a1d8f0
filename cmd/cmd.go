// Package cmd provides CLI commands for marketmate.
//
// Commands:
//   - chat: Interactive terminal chat with Bubble Tea TUI
//   - ask:  One-shot question, answer printed to stdout
//
// Both commands go through the same stream orchestrator; signal handling
// and graceful shutdown work via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/marketmate/marketmate/internal/log"
)

// Execute is the main entry point for the marketmate CLI.
func Execute() error {
	if len(os.Args) < 2 {
		// No arguments drops into interactive chat.
		return runChat()
	}

	switch os.Args[1] {
	case "chat":
		return runChat()
	case "ask":
		return runAsk(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// initLogger builds the process logger. DEBUG=1 (or config debug) enables
// debug level.
func initLogger(debug bool) log.Logger {
	level := slog.LevelInfo
	if debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println(`marketmate - terminal client for the market assistant

Usage:
  marketmate [command]

Commands:
  chat        Interactive chat (default)
  ask <text>  One-shot question, prints the answer
  version     Show version information
  help        Show this message

Configuration:
  ~/.marketmate/config.yaml, overridable via MARKETMATE_* env vars.`)
}
