// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/config"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/marketdata"
	"github.com/aristath/riskgovernor/internal/notify"
)

// Option customizes the container before services are built
type Option func(*Container)

// WithCollaborators substitutes the price provider, notifier and emitter.
// Nil values keep the configured defaults.
func WithCollaborators(prices marketdata.Provider, notifier notify.Notifier, emitter events.RiskEmitter) Option {
	return func(c *Container) {
		if prices != nil {
			c.Prices = prices
		}
		if notifier != nil {
			c.Notifier = notifier
		}
		if emitter != nil {
			c.Emitter = emitter
		}
	}
}

// Wire initializes all dependencies and returns a fully configured container
// This is the main entry point for dependency injection
// Order of operations:
// 1. Initialize database
// 2. Initialize services
// 3. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger, opts ...Option) (*Container, error) {
	// Step 1: Initialize database
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	for _, opt := range opts {
		opt(container)
	}

	// Step 2: Initialize services
	if err := InitializeServices(container, cfg, log); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 3: Register jobs
	if err := RegisterJobs(container, cfg, log); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}
