package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/riskgovernor/internal/domain"
)

func TestDecideEscalation_HighPanic(t *testing.T) {
	esc := DecideEscalation(
		domain.RegimeClassification{Regime: domain.RegimeRange},
		domain.PersonaPolicy{PanicLikelihood: 0.6},
		domain.ViabilityBundle{Confidence: 0.8},
	)
	assert.True(t, esc.Escalate)
	assert.Equal(t, "high_panic_likelihood", esc.Reason)
	assert.InDelta(t, 0.8, esc.Confidence, 1e-9)
}

func TestDecideEscalation_ConfidenceBounds(t *testing.T) {
	low := DecideEscalation(domain.RegimeClassification{Regime: domain.RegimeTrend}, domain.PersonaPolicy{}, domain.ViabilityBundle{Confidence: 0.5})
	assert.InDelta(t, 0.60, low.Confidence, 1e-9)
	assert.Equal(t, "low_confidence", low.Reason)

	high := DecideEscalation(domain.RegimeClassification{Regime: domain.RegimeTrend}, domain.PersonaPolicy{}, domain.ViabilityBundle{Confidence: 0.99})
	assert.InDelta(t, 0.95, high.Confidence, 1e-9)
	assert.False(t, high.Escalate)
}

func TestDecideEscalation_CapOnlyFallbackOnAnyStrategy(t *testing.T) {
	esc := DecideEscalation(
		domain.RegimeClassification{Regime: domain.RegimeHighVol},
		domain.PersonaPolicy{},
		domain.ViabilityBundle{
			Confidence: 0.75,
			Decisions: []domain.StrategyDecision{
				{StrategyID: domain.StrategyFire, Status: domain.StatusEnabled, Confidence: 0.75,
					Constraints: domain.StrategyConstraints{MaxTradeFreqPerDay: 1}},
				{StrategyID: domain.StrategyGrass, Status: domain.StatusEnabled, Confidence: 0.69},
			},
		},
	)
	assert.True(t, esc.Escalate)
	assert.Equal(t, "cap_only_fallback", esc.Reason)
}
