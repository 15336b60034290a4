package domain

import (
	"encoding/json"
	"time"
)

// PersonaInputs are the static persona attributes a case is created with.
type PersonaInputs struct {
	PersonaID           string  `json:"persona_id" default:"default" validate:"required,max=64"`
	RiskTolerance       Level   `json:"risk_tolerance" default:"medium" validate:"oneof=low medium high"`
	TimeHorizon         Horizon `json:"time_horizon" default:"long" validate:"oneof=short long"`
	DrawdownSensitivity Level   `json:"drawdown_sensitivity" default:"medium" validate:"oneof=low medium high"`
}

// CaseInputs is the immutable input document stored with a case.
type CaseInputs struct {
	Asset   string        `json:"asset"`
	Persona PersonaInputs `json:"persona"`
}

// Case is a persistent engagement between one asset and one persona.
type Case struct {
	CaseID    string     `json:"case_id"`
	Asset     string     `json:"asset"`
	PersonaID string     `json:"persona_id"`
	CreatedAt time.Time  `json:"created_at"`
	Inputs    CaseInputs `json:"inputs"`
}

// MarketEvent triggers exactly one engine transaction.
type MarketEvent struct {
	Asset      string         `json:"asset"`
	EventType  EventType      `json:"event_type"`
	Severity   float64        `json:"severity"`
	Details    map[string]any `json:"details"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// BehaviorRecord is the persona's behavioral history kept in memory.
// Only the override path mutates it.
type BehaviorRecord struct {
	PanicEvents       int     `json:"panic_events"`
	Overrides         int     `json:"overrides"`
	LastPanicDrawdown float64 `json:"last_panic_drawdown"`
}

// PriceSeries is the result of fetching market data.
type PriceSeries struct {
	Asset  string    `json:"asset"`
	Window int       `json:"window"`
	Prices []float64 `json:"prices"`
}

// IndicatorSnapshot is derived per transaction from the asset's prices.
type IndicatorSnapshot struct {
	Volatility  float64 `json:"volatility"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Momentum20d float64 `json:"momentum_20d"`
	RSI14       float64 `json:"rsi_14"`
	TrendSlope  float64 `json:"trend_slope"`
}

// MemoryCitation links a decision field to the memory record that informed it.
type MemoryCitation struct {
	Kind    CitationKind `json:"kind"`
	KeyOrID string       `json:"key_or_id"`
	Note    string       `json:"note"`
}

// RegimeClassification is the output of the regime stage.
type RegimeClassification struct {
	Regime     Regime             `json:"regime"`
	Confidence float64            `json:"confidence"`
	Evidence   map[string]float64 `json:"evidence"`
}

// PersonaPolicy is the output of the persona risk policy stage.
type PersonaPolicy struct {
	PersonaID       string           `json:"persona_id"`
	MaxDD           float64          `json:"max_dd"`
	MaxVol          float64          `json:"max_vol"`
	Horizon         Horizon          `json:"horizon"`
	PanicLikelihood float64          `json:"panic_likelihood"`
	Citations       []MemoryCitation `json:"citations"`
	Confidence      float64          `json:"confidence"`
}

// StopLossPolicy describes how a strategy limits losses. Pct is nil for StopLossNone.
type StopLossPolicy struct {
	Type StopLossType `json:"type"`
	Pct  *float64     `json:"pct"`
}

// StrategyConstraints are the trading limits applied to one strategy.
type StrategyConstraints struct {
	PositionCapPct     float64        `json:"position_cap_pct"`
	MaxTradeFreqPerDay int            `json:"max_trade_freq_per_day"`
	StopLossPolicy     StopLossPolicy `json:"stop_loss_policy"`
}

// StrategyDecision is the viability verdict for one strategy.
type StrategyDecision struct {
	StrategyID  StrategyID          `json:"strategy_id"`
	Status      StrategyStatus      `json:"status"`
	Constraints StrategyConstraints `json:"constraints"`
	Rationale   string              `json:"rationale"`
	Confidence  float64             `json:"confidence"`
	Citations   []MemoryCitation    `json:"citations"`
}

// ViabilityBundle holds one decision per strategy.
type ViabilityBundle struct {
	Asset      string             `json:"asset"`
	Regime     Regime             `json:"regime"`
	Decisions  []StrategyDecision `json:"decisions"`
	Confidence float64            `json:"confidence"`
}

// EscalationDecision says whether a human must look at the transaction.
type EscalationDecision struct {
	Escalate       bool     `json:"escalate"`
	Reason         string   `json:"reason"`
	Confidence     float64  `json:"confidence"`
	NotifyChannels []string `json:"notify_channels"`
}

// GuardEntry is the per-strategy part of an execution guard.
type GuardEntry struct {
	StrategyID     StrategyID          `json:"strategy_id"`
	Status         StrategyStatus      `json:"status"`
	Constraints    StrategyConstraints `json:"constraints"`
	AllowedActions []Action            `json:"allowed_actions"`
}

// Escalation is a guard-level escalation notice.
type Escalation struct {
	Reason   string   `json:"reason"`
	Channels []string `json:"channels"`
}

// ExecutionGuard is the engine's product, consumed by execution services.
type ExecutionGuard struct {
	Asset       string                    `json:"asset"`
	AsOf        time.Time                 `json:"as_of"`
	Strategies  map[StrategyID]GuardEntry `json:"strategies"`
	Escalations []Escalation              `json:"escalations"`
}

// SelectedAction records the action derived for one strategy.
type SelectedAction struct {
	Action      Action              `json:"action"`
	StrategyID  StrategyID          `json:"strategy_id"`
	Status      StrategyStatus      `json:"status"`
	Constraints StrategyConstraints `json:"constraints"`
	Confidence  float64             `json:"confidence"`
}

// StepInput tells the coordinator which outputs exist.
// EscalatedConfidence is the viability confidence the current escalation
// was computed against (nil when no escalation exists).
type StepInput struct {
	HaveRegime          bool     `json:"have_regime"`
	HavePersonaPolicy   bool     `json:"have_persona_policy"`
	HaveViability       bool     `json:"have_viability"`
	HaveEscalation      bool     `json:"have_escalation"`
	LastConfidence      float64  `json:"last_confidence"`
	EscalatedConfidence *float64 `json:"escalated_confidence,omitempty"`
}

// StepOutput is the coordinator's verdict for one loop iteration.
type StepOutput struct {
	Finalize      bool     `json:"finalize"`
	NextReasoners []string `json:"next_reasoners"`
	Note          string   `json:"note"`
}

// StageOutput is one entry of an audit's reasoner outputs.
type StageOutput struct {
	Name   string `json:"name"`
	Output any    `json:"output"`
}

// MemoryRead is one memory access recorded for an audit.
type MemoryRead struct {
	Kind  CitationKind `json:"kind"`
	Scope string       `json:"scope"`
	Key   string       `json:"key,omitempty"`
	Hit   *bool        `json:"hit,omitempty"`
	Query string       `json:"query,omitempty"`
	TopK  int          `json:"top_k,omitempty"`
	Hits  []string     `json:"hits,omitempty"`
}

// MemoryWrite is one memory mutation recorded for an audit.
type MemoryWrite struct {
	Kind     CitationKind `json:"kind"`
	Scope    string       `json:"scope"`
	Key      string       `json:"key,omitempty"`
	VectorID string       `json:"vector_id,omitempty"`
}

// AuditInputs is the inputs document of an audit.
type AuditInputs struct {
	Case       CaseInputs        `json:"case"`
	Event      MarketEvent       `json:"event"`
	Indicators IndicatorSnapshot `json:"indicators"`
}

// AuditRecord is a write-once audit report.
type AuditRecord struct {
	AuditID         string           `json:"audit_id"`
	CaseID          string           `json:"case_id"`
	Asset           string           `json:"asset"`
	CreatedAt       time.Time        `json:"created_at"`
	Inputs          AuditInputs      `json:"inputs"`
	MemoryReads     []MemoryRead     `json:"memory_reads"`
	MemoryWrites    []MemoryWrite    `json:"memory_writes"`
	ReasonerOutputs []StageOutput    `json:"reasoner_outputs"`
	SelectedActions []SelectedAction `json:"selected_actions"`
	Citations       []MemoryCitation `json:"citations"`
}

// AuditRun is an audit read back from storage. JSON columns are returned
// exactly as they were written.
type AuditRun struct {
	AuditID         string          `json:"audit_id"`
	CreatedAt       time.Time       `json:"created_at"`
	Inputs          json.RawMessage `json:"inputs"`
	MemoryReads     json.RawMessage `json:"memory_reads"`
	MemoryWrites    json.RawMessage `json:"memory_writes"`
	ReasonerOutputs json.RawMessage `json:"reasoner_outputs"`
	SelectedActions json.RawMessage `json:"selected_actions"`
	Citations       json.RawMessage `json:"citations"`
}

// CaseReport is a case together with every audit run, oldest first.
type CaseReport struct {
	CaseID    string     `json:"case_id"`
	Asset     string     `json:"asset"`
	PersonaID string     `json:"persona_id"`
	CreatedAt time.Time  `json:"created_at"`
	Inputs    CaseInputs `json:"inputs"`
	Runs      []AuditRun `json:"runs"`
}

// DecisionRecord is one row of the decision log.
type DecisionRecord struct {
	DecisionID string         `json:"decision_id"`
	CaseID     string         `json:"case_id"`
	Asset      string         `json:"asset"`
	AsOf       time.Time      `json:"as_of"`
	Guard      ExecutionGuard `json:"guard"`
	AuditID    string         `json:"audit_id"`
}

// BudgetUsage reports how much of the execution budget a transaction used.
type BudgetUsage struct {
	StepsUsed         int `json:"steps_used"`
	ReasonerCallsUsed int `json:"reasoner_calls_used"`
	SkillCallsUsed    int `json:"skill_calls_used"`
}

// RunDecision is the full typed bundle returned by one engine transaction.
type RunDecision struct {
	CaseID        string               `json:"case_id"`
	Asset         string               `json:"asset"`
	EventID       string               `json:"event_id"`
	Guard         ExecutionGuard       `json:"guard"`
	Indicators    IndicatorSnapshot    `json:"indicators"`
	Regime        RegimeClassification `json:"regime"`
	PersonaPolicy PersonaPolicy        `json:"persona_policy"`
	Viability     ViabilityBundle      `json:"viability"`
	Escalation    EscalationDecision   `json:"escalation"`
	AuditID       string               `json:"audit_id"`
	DecisionID    string               `json:"decision_id"`
	Budget        BudgetUsage          `json:"budget"`
}

// Notification is the payload sent to a human channel on escalation.
type Notification struct {
	CaseID string `json:"case_id"`
	Asset  string `json:"asset"`
	Reason string `json:"reason"`
}

// RiskEvent is the payload published to the risk-event bus on escalation.
type RiskEvent struct {
	CaseID    string    `json:"case_id"`
	Asset     string    `json:"asset"`
	EventType EventType `json:"event_type"`
	Severity  float64   `json:"severity"`
}

// SideEffectReceipt is returned by best-effort side-effect skills.
type SideEffectReceipt struct {
	Delivered bool   `json:"delivered"`
	Channel   string `json:"channel"`
}

// BacktestResult summarises a constrained strategy backtest.
type BacktestResult struct {
	StrategyID           StrategyID `json:"strategy_id"`
	TotalReturn          float64    `json:"total_return"`
	AnnualizedVolatility float64    `json:"annualized_volatility"`
	Sharpe               float64    `json:"sharpe"`
	MaxDrawdown          float64    `json:"max_drawdown"`
	Trades               int        `json:"trades"`
}

// Override is a manual human intervention on a strategy.
type Override struct {
	CaseID       string       `json:"case_id"`
	Asset        string       `json:"asset"`
	PersonaID    string       `json:"persona_id"`
	OverrideType OverrideType `json:"override_type"`
	StrategyID   StrategyID   `json:"strategy_id"`
	Value        *float64     `json:"value"`
	Reason       string       `json:"reason"`
	OccurredAt   time.Time    `json:"occurred_at"`
}
