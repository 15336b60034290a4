package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/pkg/formulas"
)

// Escalation reasons.
const (
	ReasonLowConfidence   = "low_confidence"
	ReasonCrashRiskRegime = "crash_risk_regime"
	ReasonHighPanic       = "high_panic_likelihood"
	ReasonCapOnlyFallback = "cap_only_fallback"
	ReasonWithinBounds    = "within_bounds"
)

const highPanicLikelihood = 0.60

// DecideEscalation decides whether a human must review the transaction.
// The reason lists every trigger, sorted and comma separated.
func DecideEscalation(regime domain.RegimeClassification, policy domain.PersonaPolicy, viability domain.ViabilityBundle) domain.EscalationDecision {
	triggers := map[string]struct{}{}

	if viability.Confidence < MinAutoDisableConfidence {
		triggers[ReasonLowConfidence] = struct{}{}
	}
	if regime.Regime == domain.RegimeCrashRisk {
		triggers[ReasonCrashRiskRegime] = struct{}{}
	}
	if policy.PanicLikelihood >= highPanicLikelihood {
		triggers[ReasonHighPanic] = struct{}{}
	}
	for _, d := range viability.Decisions {
		if d.Status == domain.StatusEnabled && d.Constraints.MaxTradeFreqPerDay == 0 && d.Confidence < MinAutoDisableConfidence {
			triggers[ReasonCapOnlyFallback] = struct{}{}
		}
	}

	reasons := make([]string, 0, len(triggers))
	for r := range triggers {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	conf := formulas.Round(math.Min(0.95, math.Max(0.60, viability.Confidence)), 4)
	if len(reasons) == 0 {
		return domain.EscalationDecision{
			Reason:         ReasonWithinBounds,
			Confidence:     conf,
			NotifyChannels: []string{},
		}
	}
	return domain.EscalationDecision{
		Escalate:       true,
		Reason:         strings.Join(reasons, ", "),
		Confidence:     conf,
		NotifyChannels: []string{domain.ChannelHuman},
	}
}
