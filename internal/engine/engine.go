// Package engine runs the governor's event transaction: one market event in,
// one execution guard plus its audit report out.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/database"
	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/metrics"
	"github.com/aristath/riskgovernor/internal/modules/decisions"
)

// PriceWindow is the number of daily prices each transaction fetches.
const PriceWindow = 252

const moduleName = "engine"

// Engine processes market events against cases.
type Engine struct {
	db         *sql.DB
	dispatcher *dispatch.Dispatcher
	limits     dispatch.Limits
	bus        *events.Bus
	metrics    *metrics.Recorder
	now        func() time.Time
	log        zerolog.Logger
}

// New creates an engine. limits are applied to a fresh budget per transaction.
func New(
	db *sql.DB,
	dispatcher *dispatch.Dispatcher,
	limits dispatch.Limits,
	bus *events.Bus,
	m *metrics.Recorder,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		db:         db,
		dispatcher: dispatcher,
		limits:     limits,
		bus:        bus,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// WithClock overrides the timestamp source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Limits returns the per-transaction budget caps.
func (e *Engine) Limits() dispatch.Limits {
	return e.limits
}

// ProcessMarketEvent runs one transaction with a fresh budget.
func (e *Engine) ProcessMarketEvent(ctx context.Context, caseID string, event domain.MarketEvent) (*domain.RunDecision, error) {
	return e.ProcessWithBudget(ctx, caseID, event, dispatch.NewBudget(e.limits))
}

// ProcessWithBudget runs one transaction charged against budget.
// Nothing is persisted unless the whole transaction succeeds; the guard is
// published on the bus only after commit.
func (e *Engine) ProcessWithBudget(ctx context.Context, caseID string, event domain.MarketEvent, budget *dispatch.Budget) (*domain.RunDecision, error) {
	start := time.Now()

	var run *domain.RunDecision
	err := database.WithTransaction(ctx, e.db, func(tx *sql.Tx) error {
		t := newTransaction(e, tx, budget, caseID, event)
		r, err := t.run(ctx)
		if err != nil {
			return err
		}
		run = r
		return nil
	})

	usage := budget.Usage()
	outcome := outcomeFor(err)
	e.metrics.ObserveTransaction(outcome, time.Since(start))
	e.metrics.ObserveBudget(usage)

	if err != nil {
		logEvent := e.log.Error()
		if outcome == metrics.OutcomeNotFound {
			logEvent = e.log.Warn()
		}
		logEvent.Err(err).
			Str("case_id", caseID).
			Str("outcome", outcome).
			Int("steps_used", usage.StepsUsed).
			Int("reasoner_calls_used", usage.ReasonerCallsUsed).
			Int("skill_calls_used", usage.SkillCallsUsed).
			Msg("Market event transaction aborted")
		return nil, err
	}

	if run.Escalation.Escalate {
		e.metrics.RecordEscalation(run.Escalation.Reason)
	}

	e.bus.Publish(moduleName, &events.GuardPublishedData{
		CaseID:     run.CaseID,
		DecisionID: run.DecisionID,
		AuditID:    run.AuditID,
		Guard:      run.Guard,
	})

	e.log.Info().
		Str("case_id", run.CaseID).
		Str("asset", run.Asset).
		Str("audit_id", run.AuditID).
		Str("decision_id", run.DecisionID).
		Str("regime", string(run.Regime.Regime)).
		Bool("escalate", run.Escalation.Escalate).
		Int("steps_used", usage.StepsUsed).
		Int("reasoner_calls_used", usage.ReasonerCallsUsed).
		Int("skill_calls_used", usage.SkillCallsUsed).
		Dur("duration", time.Since(start)).
		Msg("Market event processed")

	return run, nil
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, dispatch.ErrBudgetExceeded):
		return metrics.OutcomeBudgetExceeded
	default:
		return metrics.OutcomeError
	}
}

// Backtest runs a strategy backtest over the asset's price window. With nil
// constraints the strategy's constraints from the asset's latest guard are
// used, or no constraints when the asset has no guard yet.
func (e *Engine) Backtest(
	ctx context.Context,
	asset string,
	strategyID domain.StrategyID,
	window int,
	constraints *domain.StrategyConstraints,
) (*domain.BacktestResult, error) {
	if !strategyID.Valid() {
		return nil, fmt.Errorf("%w: unknown strategy_id: %s", domain.ErrInvalidInput, strategyID)
	}

	if constraints == nil {
		resolved, err := e.latestConstraints(ctx, asset, strategyID)
		if err != nil {
			return nil, err
		}
		constraints = &resolved
	}

	budget := dispatch.NewBudget(e.limits)
	series, err := dispatch.Invoke[domain.PriceSeries](ctx, e.dispatcher, budget, dispatch.OpFetchMarketData,
		dispatch.FetchMarketData{Asset: asset, Window: window})
	if err != nil {
		return nil, err
	}

	result, err := dispatch.Invoke[domain.BacktestResult](ctx, e.dispatcher, budget, dispatch.OpRunBacktest,
		dispatch.RunBacktest{StrategyID: strategyID, Prices: series.Prices, Constraints: *constraints})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Unconstrained are the constraints used for backtests of assets without a guard.
func Unconstrained() domain.StrategyConstraints {
	return domain.StrategyConstraints{
		PositionCapPct:     1.0,
		MaxTradeFreqPerDay: 100,
		StopLossPolicy:     domain.StopLossPolicy{Type: domain.StopLossNone},
	}
}

func (e *Engine) latestConstraints(ctx context.Context, asset string, strategyID domain.StrategyID) (domain.StrategyConstraints, error) {
	guard, err := decisions.NewRepository(e.db, e.log).GetLatestGuard(ctx, asset)
	if err != nil {
		return domain.StrategyConstraints{}, err
	}
	if guard == nil {
		return Unconstrained(), nil
	}
	entry, ok := guard.Strategies[strategyID]
	if !ok {
		return Unconstrained(), nil
	}
	return entry.Constraints, nil
}
