// Package domain holds the risk governor's shared data model.
package domain

// StrategyID identifies one of the governed trading strategies.
type StrategyID string

const (
	StrategyFire  StrategyID = "fire"  // momentum
	StrategyWater StrategyID = "water" // conservative
	StrategyGrass StrategyID = "grass" // adaptive
)

// StrategyOrder is the order decisions are produced and guards are assembled in.
var StrategyOrder = []StrategyID{StrategyFire, StrategyWater, StrategyGrass}

// Valid reports whether the strategy id is on the allow-list.
func (s StrategyID) Valid() bool {
	switch s {
	case StrategyFire, StrategyWater, StrategyGrass:
		return true
	}
	return false
}

// StrategyStatus is the enablement of a strategy in a guard.
type StrategyStatus string

const (
	StatusEnabled  StrategyStatus = "ENABLED"
	StatusDisabled StrategyStatus = "DISABLED"
)

// Regime is a market regime label.
type Regime string

const (
	RegimeTrend     Regime = "trend"
	RegimeRange     Regime = "range"
	RegimeHighVol   Regime = "high_vol"
	RegimeCrashRisk Regime = "crash_risk"
)

// EventType is the kind of market event that triggers a transaction.
type EventType string

const (
	EventPriceJump   EventType = "price_jump"
	EventVolSpike    EventType = "vol_spike"
	EventRegimeHint  EventType = "regime_hint"
	EventCrashSignal EventType = "crash_signal"
	EventHeartbeat   EventType = "heartbeat"
)

// Valid reports whether the event type is known.
func (e EventType) Valid() bool {
	switch e {
	case EventPriceJump, EventVolSpike, EventRegimeHint, EventCrashSignal, EventHeartbeat:
		return true
	}
	return false
}

// Action is the execution action derived from a strategy decision.
type Action string

const (
	ActionDisable Action = "disable"
	ActionCapOnly Action = "cap_only"
	ActionEnable  Action = "enable"
)

// AllowedActions is the action set every guard entry advertises.
var AllowedActions = []Action{ActionEnable, ActionDisable, ActionCapOnly}

// StopLossType selects the stop-loss policy.
type StopLossType string

const (
	StopLossNone     StopLossType = "none"
	StopLossFixed    StopLossType = "fixed_pct"
	StopLossTrailing StopLossType = "trailing_pct"
)

// Level is a three-step persona scale.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Horizon is a persona's investment horizon.
type Horizon string

const (
	HorizonShort Horizon = "short"
	HorizonLong  Horizon = "long"
)

// CitationKind says which memory facility a citation points to.
type CitationKind string

const (
	CitationKV     CitationKind = "kv"
	CitationVector CitationKind = "vector"
)

// OverrideType is the kind of manual override a human applied.
type OverrideType string

const (
	OverrideForceEnable  OverrideType = "force_enable"
	OverrideForceDisable OverrideType = "force_disable"
	OverrideSetCap       OverrideType = "set_cap"
)

// ChannelHuman is the notification channel used for escalations.
const ChannelHuman = "human"

// PersonaScope returns the memory scope for a persona.
func PersonaScope(personaID string) string {
	return "persona:" + personaID
}

// AssetScope returns the memory scope for an asset.
func AssetScope(asset string) string {
	return "asset:" + asset
}

// Memory keys.
const (
	KeyBehavior       = "behavior"
	KeyLatestDecision = "latest_decision"
	KeyLastOverride   = "last_override"
)
