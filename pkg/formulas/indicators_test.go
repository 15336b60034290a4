package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearPrices(n int, start, step float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + step*float64(i)
	}
	return prices
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"monotonic up", []float64{100, 101, 102}, 0},
		{"single dip", []float64{100, 120, 90, 110}, -0.25},
		{"deepest of two dips", []float64{100, 80, 100, 50}, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, MaxDrawdown(tt.prices), 1e-12)
		})
	}
}

func TestMomentum(t *testing.T) {
	assert.Equal(t, 0.0, Momentum(linearPrices(20, 100, 1), 20), "needs window+1 points")

	prices := linearPrices(21, 100, 1)
	assert.InDelta(t, 0.2, Momentum(prices, 20), 1e-12)
}

func TestTrendSlope(t *testing.T) {
	assert.Equal(t, 0.0, TrendSlope(linearPrices(29, 100, 1), 30))

	prices := linearPrices(30, 100, 2)
	// slope 2 over mean 129
	assert.InDelta(t, 2.0/129.0, TrendSlope(prices, 30), 1e-9)

	flat := linearPrices(40, 100, 0)
	assert.InDelta(t, 0.0, TrendSlope(flat, 30), 1e-12)
}

func TestLatestVolatility(t *testing.T) {
	assert.Equal(t, 0.0, LatestVolatility(linearPrices(20, 100, 0), 20))

	flat := linearPrices(60, 100, 0)
	assert.InDelta(t, 0.0, LatestVolatility(flat, 20), 1e-9)

	alternating := make([]float64, 60)
	for i := range alternating {
		if i%2 == 0 {
			alternating[i] = 100
		} else {
			alternating[i] = 102
		}
	}
	vol := LatestVolatility(alternating, 20)
	assert.Greater(t, vol, 0.2)
	assert.InDelta(t, math.Log(1.02)*math.Sqrt(TradingDays), vol, 1e-6)
}

func TestCalculateRSI(t *testing.T) {
	assert.Nil(t, CalculateRSI(linearPrices(10, 100, 1), 14))

	rsi := CalculateRSI(linearPrices(40, 100, 1), 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 100.0, *rsi, 1e-9)

	rsi = CalculateRSI(linearPrices(40, 200, -1), 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 0.0, *rsi, 1e-9)
}

func TestSeriesAlignment(t *testing.T) {
	prices := linearPrices(50, 100, 1)

	sma := SMASeries(prices, 10)
	assert.True(t, math.IsNaN(sma[8]))
	assert.InDelta(t, 104.5, sma[9], 1e-9)

	upper, middle, lower := BollingerBands(prices, 20, 2)
	assert.True(t, math.IsNaN(middle[18]))
	assert.Greater(t, upper[30], middle[30])
	assert.Less(t, lower[30], middle[30])

	vol := RollingVolatility(prices, 20)
	assert.True(t, math.IsNaN(vol[19]))
	assert.False(t, math.IsNaN(vol[20]))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.1235, Round(0.123456, 4))
	assert.Equal(t, -0.18, Round(-0.18004, 4))
	assert.Equal(t, 0.000123, Round(0.0001234, 6))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.1, Clamp(0.01, 0.1, 1))
	assert.Equal(t, 1.0, Clamp(2, 0.1, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0.1, 1))
}
