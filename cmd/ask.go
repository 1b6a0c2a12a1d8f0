package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/marketmate/marketmate/internal/chat"
	"github.com/marketmate/marketmate/internal/layout"
)

// runAsk sends a one-shot question and prints the answer to stdout.
func runAsk(args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("usage: marketmate ask <question>")
	}

	orch, _, logger, err := buildOrchestrator(chat.NopEmitter{})
	if err != nil {
		return err
	}

	turn, err := orch.Submit(context.Background(), question, newThreadID())
	if err != nil {
		return err
	}
	// Let in-flight hydration finish before printing widget data.
	orch.Wait()

	if turn.State() == chat.TurnErrored {
		logger.Error("turn failed", "error", turn.Err)
	}

	text, widgets := turn.Snapshot()
	if text != "" {
		fmt.Println(text)
	}
	for _, w := range widgets {
		printWidget(w)
	}
	return nil
}

// printWidget renders a widget as indented plain text. Charts and other
// visual-only payloads collapse to their scalar fields.
func printWidget(w layout.Widget) {
	fmt.Printf("\n[%s]", w.Type)
	if w.ChartType != "" {
		fmt.Printf(" (%s)", w.ChartType)
	}
	fmt.Println()
	if w.Content != "" {
		fmt.Printf("  %s\n", w.Content)
	}

	keys := make([]string, 0, len(w.Data))
	for k := range w.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := w.Data[k].(type) {
		case string, float64, int, bool:
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
}
