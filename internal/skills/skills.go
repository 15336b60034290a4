// Package skills holds the governor's deterministic skills: market data,
// indicators, backtests, guard construction, side effects and persistence.
package skills

import (
	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/marketdata"
	"github.com/aristath/riskgovernor/internal/notify"
)

// Deps are the collaborators skills call out to.
type Deps struct {
	Prices   marketdata.Provider
	Notifier notify.Notifier
	Emitter  events.RiskEmitter
	Log      zerolog.Logger
}

// Register adds every skill to the registry.
func Register(r *dispatch.Registry, deps Deps) {
	market := NewMarket(deps.Prices)
	effects := &SideEffects{
		notifier: deps.Notifier,
		emitter:  deps.Emitter,
		log:      deps.Log.With().Str("skill", "side_effects").Logger(),
	}

	r.Register(dispatch.Skill(dispatch.OpFetchMarketData, market.FetchMarketData, "market"))
	r.Register(dispatch.Skill(dispatch.OpComputeIndicators, ComputeIndicators, "indicators"))
	r.Register(dispatch.Skill(dispatch.OpRunBacktest, RunBacktest, "backtest"))
	r.Register(dispatch.Skill(dispatch.OpApplyPolicyConstraints, ApplyPolicyConstraints, "governance"))
	r.Register(dispatch.Skill(dispatch.OpNotify, effects.Notify, "side_effect"))
	r.Register(dispatch.Skill(dispatch.OpEmitRiskEvent, effects.EmitRiskEvent, "side_effect"))
	r.Register(dispatch.Skill(dispatch.OpPersistAudit, PersistAudit, "persistence"))
	r.Register(dispatch.Skill(dispatch.OpPersistDecision, PersistDecision, "persistence"))
}
