package pipeline

import (
	"math"

	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/pkg/formulas"
)

// ClassifyRegime labels the market from indicators and the triggering event.
// Rules are checked in order: crash risk, high volatility, trend, range.
func ClassifyRegime(ind domain.IndicatorSnapshot, eventType domain.EventType, severity float64) domain.RegimeClassification {
	vol := ind.Volatility
	dd := ind.MaxDrawdown
	mom := ind.Momentum20d
	slope := ind.TrendSlope

	var (
		regime domain.Regime
		conf   float64
	)
	switch {
	case eventType == domain.EventCrashSignal || dd <= -0.18 ||
		(eventType == domain.EventPriceJump && severity > 0.75 && mom < -0.04):
		regime = domain.RegimeCrashRisk
		conf = math.Min(0.95, 0.70+math.Min(0.25, math.Abs(dd)/0.25)+0.10*severity)

	case eventType == domain.EventVolSpike || vol >= 0.30:
		regime = domain.RegimeHighVol
		conf = math.Min(0.92, 0.62+math.Min(0.25, vol/0.45)+0.08*severity)

	case math.Abs(mom) >= 0.04 && math.Abs(slope) >= 0.0008:
		regime = domain.RegimeTrend
		conf = math.Min(0.90, 0.60+math.Min(0.20, math.Abs(mom)/0.10)+math.Min(0.10, math.Abs(slope)/0.01))

	default:
		regime = domain.RegimeRange
		conf = 0.62
		if vol < 0.22 && math.Abs(mom) < 0.03 {
			conf = 0.70
		}
	}

	return domain.RegimeClassification{
		Regime:     regime,
		Confidence: formulas.Round(conf, 4),
		Evidence: map[string]float64{
			"volatility":     formulas.Round(vol, 4),
			"max_drawdown":   formulas.Round(dd, 4),
			"momentum_20d":   formulas.Round(mom, 4),
			"trend_slope":    formulas.Round(slope, 6),
			"event_severity": formulas.Round(severity, 4),
		},
	}
}
