package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/memory"
	"github.com/aristath/riskgovernor/pkg/formulas"
)

const (
	incidentTopK = 3

	overrideHitMinScore  = 0.35
	overrideMinPanic     = 0.35
	overrideFireCapScale = 0.80

	autoDisableFloorCap = 0.05
)

type strategyRule struct {
	status    domain.StrategyStatus
	cap       float64
	freq      int
	stopType  domain.StopLossType
	stopPct   float64
	rationale string
}

// regimeRules is the per-regime strategy table, before persona tightening.
var regimeRules = map[domain.Regime]map[domain.StrategyID]strategyRule{
	domain.RegimeCrashRisk: {
		domain.StrategyFire:  {domain.StatusDisabled, 0.05, 0, domain.StopLossFixed, 0.05, "Crash risk: momentum is fragile."},
		domain.StrategyWater: {domain.StatusEnabled, 0.70, 2, domain.StopLossFixed, 0.10, "Crash risk: preserve capital, trade rarely."},
		domain.StrategyGrass: {domain.StatusEnabled, 0.30, 1, domain.StopLossFixed, 0.08, "Crash risk: adaptive allowed with tight brakes."},
	},
	domain.RegimeHighVol: {
		domain.StrategyFire:  {domain.StatusEnabled, 0.15, 1, domain.StopLossFixed, 0.08, "High vol: allow fire only with tight cap."},
		domain.StrategyWater: {domain.StatusEnabled, 0.55, 2, domain.StopLossFixed, 0.10, "High vol: conservative dominates."},
		domain.StrategyGrass: {domain.StatusEnabled, 0.35, 2, domain.StopLossFixed, 0.09, "High vol: adaptive allowed, capped."},
	},
	domain.RegimeTrend: {
		domain.StrategyFire:  {domain.StatusEnabled, 0.45, 4, domain.StopLossTrailing, 0.12, "Trend: allow momentum with guardrails."},
		domain.StrategyWater: {domain.StatusEnabled, 0.35, 2, domain.StopLossNone, 0, "Trend: conservative allowed but capped."},
		domain.StrategyGrass: {domain.StatusEnabled, 0.40, 3, domain.StopLossTrailing, 0.12, "Trend: adaptive allowed."},
	},
	domain.RegimeRange: {
		domain.StrategyFire:  {domain.StatusEnabled, 0.25, 2, domain.StopLossFixed, 0.10, "Range: momentum risk; keep smaller cap."},
		domain.StrategyWater: {domain.StatusEnabled, 0.55, 3, domain.StopLossFixed, 0.10, "Range: mean reversion fits."},
		domain.StrategyGrass: {domain.StatusEnabled, 0.35, 2, domain.StopLossFixed, 0.10, "Range: adaptive allowed."},
	},
}

func (r strategyRule) constraints() domain.StrategyConstraints {
	stop := domain.StopLossPolicy{Type: r.stopType}
	if r.stopType != domain.StopLossNone {
		pct := r.stopPct
		stop.Pct = &pct
	}
	return domain.StrategyConstraints{
		PositionCapPct:     r.cap,
		MaxTradeFreqPerDay: r.freq,
		StopLossPolicy:     stop,
	}
}

// DecideViability produces one decision per strategy for the regime, tightened
// by the persona policy and by similar past incidents for the asset.
// A strategy is never disabled below MinAutoDisableConfidence; it is capped
// instead and the escalation stage picks it up.
func DecideViability(ctx context.Context, call dispatch.DecideViability) (domain.ViabilityBundle, error) {
	regime := call.Regime
	policy := call.Policy
	ind := call.Indicators

	query := fmt.Sprintf("asset=%s regime=%s vol=%s dd=%s panic=%s",
		call.Asset, regime.Regime, formatFloat(ind.Volatility), formatFloat(ind.MaxDrawdown), formatFloat(policy.PanicLikelihood))
	hits, err := call.Memory.Search(ctx, domain.AssetScope(call.Asset), query, incidentTopK)
	if err != nil {
		return domain.ViabilityBundle{}, fmt.Errorf("failed to search incident memory: %w", err)
	}

	citations := make([]domain.MemoryCitation, 0, len(hits))
	for _, h := range hits {
		citations = append(citations, domain.MemoryCitation{
			Kind:    domain.CitationVector,
			KeyOrID: h.VectorID,
			Note:    fmt.Sprintf("similarity=%.3f", h.Score),
		})
	}

	rules, ok := regimeRules[regime.Regime]
	if !ok {
		return domain.ViabilityBundle{}, fmt.Errorf("%w: unknown regime %q", domain.ErrInvalidInput, regime.Regime)
	}

	tighten := tightenFactor(ind, policy)
	overrideMemory := hasOverrideMemory(hits) && policy.PanicLikelihood >= overrideMinPanic

	conf := math.Min(regime.Confidence, policy.Confidence)
	if ind.Volatility > policy.MaxVol*1.15 || math.Abs(ind.MaxDrawdown) > policy.MaxDD*1.15 {
		conf *= 0.85
	}
	conf = formulas.Round(formulas.Clamp(conf, 0.50, 0.92), 4)

	decisions := make([]domain.StrategyDecision, 0, len(domain.StrategyOrder))
	for _, sid := range domain.StrategyOrder {
		rule := rules[sid]
		constraints := rule.constraints()
		constraints.PositionCapPct = formulas.Round(constraints.PositionCapPct*tighten, 4)
		rationale := rule.rationale

		if sid == domain.StrategyFire && overrideMemory {
			constraints.PositionCapPct = formulas.Round(constraints.PositionCapPct*overrideFireCapScale, 4)
			rationale += " Memory: prior panic/override -> earlier de-risk."
		}

		status := rule.status
		decisionConf := conf
		if status == domain.StatusDisabled && conf < MinAutoDisableConfidence {
			status = domain.StatusEnabled
			constraints.PositionCapPct = math.Min(constraints.PositionCapPct, autoDisableFloorCap)
			constraints.MaxTradeFreqPerDay = 0
			rationale += " Low confidence: no auto-disable; cap-only + escalate."
			decisionConf = formulas.Round(math.Min(conf, 0.69), 4)
		}

		decisions = append(decisions, domain.StrategyDecision{
			StrategyID:  sid,
			Status:      status,
			Constraints: constraints,
			Rationale:   rationale,
			Confidence:  decisionConf,
			Citations:   append([]domain.MemoryCitation(nil), citations...),
		})
	}

	return domain.ViabilityBundle{
		Asset:      call.Asset,
		Regime:     regime.Regime,
		Decisions:  decisions,
		Confidence: conf,
	}, nil
}

func tightenFactor(ind domain.IndicatorSnapshot, policy domain.PersonaPolicy) float64 {
	t := 1.0
	if ind.Volatility > policy.MaxVol {
		t *= 0.75
	}
	if math.Abs(ind.MaxDrawdown) > policy.MaxDD {
		t *= 0.70
	}
	t *= 1 - 0.2*policy.PanicLikelihood
	return formulas.Clamp(t, 0.10, 1.0)
}

func hasOverrideMemory(hits []memory.SearchHit) bool {
	for _, h := range hits {
		if h.Score >= overrideHitMinScore && strings.Contains(strings.ToLower(h.Text), "override") {
			return true
		}
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
