package pipeline

import (
	"context"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
)

// Register adds the coordinator and the four decision stages to the registry.
func Register(r *dispatch.Registry) {
	r.Register(dispatch.Reasoner(dispatch.OpCoordinate,
		func(_ context.Context, c dispatch.CoordinateStep) (domain.StepOutput, error) {
			return Coordinate(c.State), nil
		}, "coordinator"))

	r.Register(dispatch.Reasoner(dispatch.OpClassifyRegime,
		func(_ context.Context, c dispatch.ClassifyRegime) (domain.RegimeClassification, error) {
			return ClassifyRegime(c.Indicators, c.EventType, c.Severity), nil
		}, "regime", "market"))

	r.Register(dispatch.Reasoner(dispatch.OpPersonaRiskPolicy,
		func(ctx context.Context, c dispatch.DerivePersonaPolicy) (domain.PersonaPolicy, error) {
			return DerivePersonaPolicy(ctx, c.Persona, c.Memory)
		}, "persona", "memory"))

	r.Register(dispatch.Reasoner(dispatch.OpStrategyViability, DecideViability, "strategy", "memory"))

	r.Register(dispatch.Reasoner(dispatch.OpEscalationDecision,
		func(_ context.Context, c dispatch.DecideEscalation) (domain.EscalationDecision, error) {
			return DecideEscalation(c.Regime, c.Policy, c.Viability), nil
		}, "escalation"))
}
