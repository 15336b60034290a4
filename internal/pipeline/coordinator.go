// Package pipeline implements the governor's decision stages: a coordinator
// that picks the next stages from the evidence gaps, and the regime, persona,
// viability and escalation stages it drives.
package pipeline

import "github.com/aristath/riskgovernor/internal/domain"

// MinAutoDisableConfidence is the confidence below which no strategy may be
// disabled automatically and escalation is re-evaluated.
const MinAutoDisableConfidence = 0.70

// Stage names, in the order the coordinator proposes them.
const (
	StageRegime     = "market_regime_classifier"
	StagePersona    = "persona_risk_policy"
	StageViability  = "strategy_viability_decider"
	StageEscalation = "escalation_decider"
)

const (
	noteFinal   = "final"
	noteCollect = "collect evidence / reduce uncertainty"
)

// Coordinate selects the stages to run next. Escalation is proposed while it
// is missing, and again under low confidence until it has been computed
// against the current viability confidence. The loop finalizes once all four
// outputs exist and no escalation re-evaluation is pending.
func Coordinate(in domain.StepInput) domain.StepOutput {
	next := make([]string, 0, 4)

	if !in.HaveRegime {
		next = append(next, StageRegime)
	}
	if !in.HavePersonaPolicy {
		next = append(next, StagePersona)
	}
	if in.HaveRegime && in.HavePersonaPolicy && !in.HaveViability {
		next = append(next, StageViability)
	}

	reevaluate := in.HaveViability && (!in.HaveEscalation ||
		(in.LastConfidence < MinAutoDisableConfidence && !escalationCurrent(in)))
	if reevaluate {
		next = append(next, StageEscalation)
	}

	finalize := in.HaveRegime && in.HavePersonaPolicy && in.HaveViability && in.HaveEscalation && !reevaluate
	if finalize {
		return domain.StepOutput{Finalize: true, NextReasoners: []string{}, Note: noteFinal}
	}
	return domain.StepOutput{NextReasoners: next, Note: noteCollect}
}

func escalationCurrent(in domain.StepInput) bool {
	return in.HaveEscalation && in.EscalatedConfidence != nil && *in.EscalatedConfidence == in.LastConfidence
}
