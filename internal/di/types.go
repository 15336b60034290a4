/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server for access to services.
 */
package di

import (
	"errors"

	"github.com/aristath/riskgovernor/internal/config"
	"github.com/aristath/riskgovernor/internal/database"
	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/engine"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/marketdata"
	"github.com/aristath/riskgovernor/internal/metrics"
	"github.com/aristath/riskgovernor/internal/modules/cases"
	"github.com/aristath/riskgovernor/internal/modules/decisions"
	"github.com/aristath/riskgovernor/internal/modules/overrides"
	"github.com/aristath/riskgovernor/internal/notify"
	"github.com/aristath/riskgovernor/internal/reliability"
	"github.com/aristath/riskgovernor/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Database: one SQLite file holding cases, events, the decision/audit ledger and memory
 * - Dispatch: callable registry (decision stages + skills) behind a budgeted dispatcher
 * - Collaborators: price provider, human notifier, risk event emitter
 * - Services: engine, case and override services, decision repository
 * - Background: cron scheduler with maintenance and backup jobs
 */
type Container struct {
	Config *config.Config

	// Storage
	DB *database.DB // Governor database (ledger profile)

	// Infrastructure
	Bus        *events.Bus          // In-process domain events
	Metrics    *metrics.Recorder    // Prometheus collectors
	Registry   *dispatch.Registry   // Fully-qualified reasoners and skills
	Dispatcher *dispatch.Dispatcher // Budget-enforcing call router

	// Collaborators
	Prices   marketdata.Provider // Price history for fetch_market_data
	Notifier notify.Notifier     // Human escalation channel (nil disables notify)
	Emitter  events.RiskEmitter  // Risk event channel (nil disables emit_risk_event)

	// Services
	Engine          *engine.Engine             // Market event transactions and backtests
	CaseService     *cases.Service             // Case creation and audit reports
	OverrideService *overrides.Service         // Human override recording
	DecisionRepo    *decisions.Repository      // Latest guard reads
	BackupService   *reliability.BackupService // Nil unless a bucket is configured

	// Background jobs
	Scheduler *scheduler.Scheduler

	closers []func() error
}

// addCloser registers a resource released by Close, in reverse order
func (c *Container) addCloser(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases every resource the container opened
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
