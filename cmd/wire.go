package cmd

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/marketmate/marketmate/internal/chat"
	"github.com/marketmate/marketmate/internal/config"
	"github.com/marketmate/marketmate/internal/hydrate"
	"github.com/marketmate/marketmate/internal/log"
	"github.com/marketmate/marketmate/internal/market"
	"github.com/marketmate/marketmate/internal/news"
	"github.com/marketmate/marketmate/internal/onchain"
)

// buildOrchestrator loads configuration and wires the full client stack:
// transport, hydration sources, and the stream orchestrator.
func buildOrchestrator(emitter chat.Emitter) (*chat.Orchestrator, *config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger := initLogger(cfg.Debug)

	client, err := chat.NewClient(cfg.ServerURL)
	if err != nil {
		return nil, nil, nil, err
	}

	hydrator := hydrate.New(
		market.New(cfg.MarketURL, cfg.MarketKey, logger.With("component", "market")),
		news.New(cfg.NewsURL, cfg.NewsKey, logger.With("component", "news")),
		onchain.New(cfg.OnChainURL, cfg.OnChainKey, logger.With("component", "onchain")),
		logger.With("component", "hydrate"),
	)

	orch := chat.NewOrchestrator(client, hydrator, emitter, logger.With("component", "chat"))
	return orch, cfg, logger, nil
}

// newThreadID mints a conversation thread identifier. The server scopes
// memory per thread, so every process start begins a fresh conversation.
func newThreadID() string {
	return uuid.NewString()
}
