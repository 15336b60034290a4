package dispatch

import (
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/memory"
)

// Short names of every registered operation.
const (
	OpFetchMarketData        = "fetch_market_data"
	OpComputeIndicators      = "compute_indicators"
	OpRunBacktest            = "run_backtest"
	OpApplyPolicyConstraints = "apply_policy_constraints"
	OpNotify                 = "notify"
	OpEmitRiskEvent          = "emit_risk_event"
	OpPersistAudit           = "persist_audit"
	OpPersistDecision        = "persist_decision"

	OpCoordinate         = "risk_governor"
	OpClassifyRegime     = "market_regime_classifier"
	OpPersonaRiskPolicy  = "persona_risk_policy"
	OpStrategyViability  = "strategy_viability_decider"
	OpEscalationDecision = "escalation_decider"
)

// Call is the closed set of operation arguments. Each registered callable
// accepts exactly one variant.
type Call interface {
	Operation() string
	call()
}

// FetchMarketData loads a price window for an asset.
type FetchMarketData struct {
	Asset  string
	Window int
}

// ComputeIndicators derives the indicator snapshot from prices.
type ComputeIndicators struct {
	Prices []float64
}

// RunBacktest backtests a strategy under constraints.
type RunBacktest struct {
	StrategyID  domain.StrategyID
	Prices      []float64
	Constraints domain.StrategyConstraints
}

// ApplyPolicyConstraints turns a strategy decision into a guard entry.
type ApplyPolicyConstraints struct {
	StrategyID  domain.StrategyID
	Status      domain.StrategyStatus
	Constraints domain.StrategyConstraints
}

// Notify sends an escalation to the human channel.
type Notify struct {
	Payload domain.Notification
}

// EmitRiskEvent publishes an escalation to the risk-event bus.
type EmitRiskEvent struct {
	Payload domain.RiskEvent
}

// PersistAudit writes an audit row through the transaction's ledger.
type PersistAudit struct {
	Ledger domain.AuditLedger
	Record domain.AuditRecord
}

// PersistDecision writes a decision row through the transaction's ledger.
type PersistDecision struct {
	Ledger domain.AuditLedger
	Record domain.DecisionRecord
}

// CoordinateStep asks the coordinator which stages to run next.
type CoordinateStep struct {
	State domain.StepInput
}

// ClassifyRegime runs the regime stage.
type ClassifyRegime struct {
	Indicators domain.IndicatorSnapshot
	EventType  domain.EventType
	Severity   float64
}

// DerivePersonaPolicy runs the persona risk policy stage.
type DerivePersonaPolicy struct {
	Persona domain.PersonaInputs
	Memory  memory.Port
}

// DecideViability runs the strategy viability stage.
type DecideViability struct {
	Asset      string
	Regime     domain.RegimeClassification
	Policy     domain.PersonaPolicy
	Indicators domain.IndicatorSnapshot
	Memory     memory.Port
}

// DecideEscalation runs the escalation stage.
type DecideEscalation struct {
	Regime    domain.RegimeClassification
	Policy    domain.PersonaPolicy
	Viability domain.ViabilityBundle
}

func (FetchMarketData) Operation() string        { return OpFetchMarketData }
func (ComputeIndicators) Operation() string      { return OpComputeIndicators }
func (RunBacktest) Operation() string            { return OpRunBacktest }
func (ApplyPolicyConstraints) Operation() string { return OpApplyPolicyConstraints }
func (Notify) Operation() string                 { return OpNotify }
func (EmitRiskEvent) Operation() string          { return OpEmitRiskEvent }
func (PersistAudit) Operation() string           { return OpPersistAudit }
func (PersistDecision) Operation() string        { return OpPersistDecision }
func (CoordinateStep) Operation() string         { return OpCoordinate }
func (ClassifyRegime) Operation() string         { return OpClassifyRegime }
func (DerivePersonaPolicy) Operation() string    { return OpPersonaRiskPolicy }
func (DecideViability) Operation() string        { return OpStrategyViability }
func (DecideEscalation) Operation() string       { return OpEscalationDecision }

func (FetchMarketData) call()        {}
func (ComputeIndicators) call()      {}
func (RunBacktest) call()            {}
func (ApplyPolicyConstraints) call() {}
func (Notify) call()                 {}
func (EmitRiskEvent) call()          {}
func (PersistAudit) call()           {}
func (PersistDecision) call()        {}
func (CoordinateStep) call()         {}
func (ClassifyRegime) call()         {}
func (DerivePersonaPolicy) call()    {}
func (DecideViability) call()        {}
func (DecideEscalation) call()       {}
