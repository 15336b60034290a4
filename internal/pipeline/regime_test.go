package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/riskgovernor/internal/domain"
)

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		name      string
		ind       domain.IndicatorSnapshot
		eventType domain.EventType
		severity  float64
		regime    domain.Regime
		conf      float64
	}{
		{"crash signal caps confidence", domain.IndicatorSnapshot{MaxDrawdown: -0.10}, domain.EventCrashSignal, 0.9, domain.RegimeCrashRisk, 0.95},
		{"deep drawdown", domain.IndicatorSnapshot{MaxDrawdown: -0.20}, domain.EventHeartbeat, 0.2, domain.RegimeCrashRisk, 0.95},
		{"severe down jump", domain.IndicatorSnapshot{MaxDrawdown: -0.02, Momentum20d: -0.05}, domain.EventPriceJump, 0.8, domain.RegimeCrashRisk, 0.86},
		{"mild jump is not a crash", domain.IndicatorSnapshot{Volatility: 0.15, MaxDrawdown: -0.02, Momentum20d: -0.05}, domain.EventPriceJump, 0.5, domain.RegimeRange, 0.62},
		{"vol spike event", domain.IndicatorSnapshot{Volatility: 0.20}, domain.EventVolSpike, 0.5, domain.RegimeHighVol, 0.91},
		{"high realized vol", domain.IndicatorSnapshot{Volatility: 0.30}, domain.EventHeartbeat, 0.2, domain.RegimeHighVol, 0.886},
		{"strong trend", domain.IndicatorSnapshot{Volatility: 0.15, Momentum20d: 0.06, TrendSlope: 0.002}, domain.EventHeartbeat, 0.2, domain.RegimeTrend, 0.90},
		{"weak slope trend", domain.IndicatorSnapshot{Volatility: 0.15, Momentum20d: -0.04, TrendSlope: -0.0008}, domain.EventRegimeHint, 0.2, domain.RegimeTrend, 0.88},
		{"calm range", domain.IndicatorSnapshot{Volatility: 0.15, Momentum20d: 0.01}, domain.EventHeartbeat, 0.2, domain.RegimeRange, 0.70},
		{"choppy range", domain.IndicatorSnapshot{Volatility: 0.25, Momentum20d: 0.01}, domain.EventHeartbeat, 0.2, domain.RegimeRange, 0.62},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRegime(tt.ind, tt.eventType, tt.severity)
			assert.Equal(t, tt.regime, got.Regime)
			assert.InDelta(t, tt.conf, got.Confidence, 1e-9)
		})
	}
}

func TestClassifyRegime_EvidenceIsRounded(t *testing.T) {
	got := ClassifyRegime(domain.IndicatorSnapshot{
		Volatility:  0.123456,
		MaxDrawdown: -0.054321,
		Momentum20d: 0.011119,
		TrendSlope:  0.00012345678,
	}, domain.EventHeartbeat, 0.25)

	assert.Equal(t, map[string]float64{
		"volatility":     0.1235,
		"max_drawdown":   -0.0543,
		"momentum_20d":   0.0111,
		"trend_slope":    0.000123,
		"event_severity": 0.25,
	}, got.Evidence)
}
