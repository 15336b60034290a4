package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/memory"
	"github.com/aristath/riskgovernor/pkg/formulas"
)

var (
	baseMaxDrawdown = map[domain.Level]float64{
		domain.LevelLow:    0.10,
		domain.LevelMedium: 0.18,
		domain.LevelHigh:   0.28,
	}
	baseMaxVolatility = map[domain.Level]float64{
		domain.LevelLow:    0.18,
		domain.LevelMedium: 0.28,
		domain.LevelHigh:   0.40,
	}
)

// DerivePersonaPolicy turns static persona inputs and the persona's behavior
// record into drawdown/volatility tolerances and a panic likelihood. The
// behavior record is cited even when it is missing.
func DerivePersonaPolicy(ctx context.Context, persona domain.PersonaInputs, mem memory.Port) (domain.PersonaPolicy, error) {
	persona = withPersonaDefaults(persona)
	scope := domain.PersonaScope(persona.PersonaID)

	var behavior domain.BehaviorRecord
	hit, err := mem.Get(ctx, scope, domain.KeyBehavior, &behavior)
	if err != nil {
		return domain.PersonaPolicy{}, fmt.Errorf("failed to read persona behavior: %w", err)
	}
	citations := []domain.MemoryCitation{{
		Kind:    domain.CitationKV,
		KeyOrID: scope + "/" + domain.KeyBehavior,
		Note:    "persona behavior",
	}}

	maxDD := baseMaxDrawdown[persona.RiskTolerance]
	maxVol := baseMaxVolatility[persona.RiskTolerance]
	if persona.TimeHorizon == domain.HorizonShort {
		maxDD *= 0.85
		maxVol *= 0.90
	}
	switch persona.DrawdownSensitivity {
	case domain.LevelHigh:
		maxDD *= 0.80
	case domain.LevelLow:
		maxDD *= 1.10
	}

	panicLikelihood := PanicLikelihood(behavior)

	conf := 0.70
	if hit {
		conf = 0.78
	}
	conf = math.Min(0.90, conf+0.05*(1-panicLikelihood))

	return domain.PersonaPolicy{
		PersonaID:       persona.PersonaID,
		MaxDD:           formulas.Round(maxDD*(1-0.25*panicLikelihood), 4),
		MaxVol:          formulas.Round(maxVol*(1-0.20*panicLikelihood), 4),
		Horizon:         persona.TimeHorizon,
		PanicLikelihood: panicLikelihood,
		Citations:       citations,
		Confidence:      formulas.Round(conf, 4),
	}, nil
}

// PanicLikelihood estimates how likely the persona is to abandon a strategy
// under stress, from past panics, overrides and the drawdown at the last panic.
func PanicLikelihood(b domain.BehaviorRecord) float64 {
	p := 0.10 + 0.18*float64(b.PanicEvents) + 0.08*float64(b.Overrides) + 0.60*math.Max(0, -b.LastPanicDrawdown)
	return formulas.Round(math.Min(1.0, p), 4)
}

func withPersonaDefaults(p domain.PersonaInputs) domain.PersonaInputs {
	if p.PersonaID == "" {
		p.PersonaID = "default"
	}
	if _, ok := baseMaxDrawdown[p.RiskTolerance]; !ok {
		p.RiskTolerance = domain.LevelMedium
	}
	if p.TimeHorizon != domain.HorizonShort {
		p.TimeHorizon = domain.HorizonLong
	}
	if p.DrawdownSensitivity == "" {
		p.DrawdownSensitivity = domain.LevelMedium
	}
	return p
}
