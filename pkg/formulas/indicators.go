package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// CalculateRSI calculates the Relative Strength Index (Wilder smoothing).
// Returns nil if there is not enough data.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}
	return nil
}

// RSISeries returns RSI aligned with closes; entries without enough
// history are NaN.
func RSISeries(closes []float64, length int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) < length+1 {
		return out
	}
	rsi := talib.Rsi(closes, length)
	for i := length; i < len(closes); i++ {
		out[i] = rsi[i]
	}
	return out
}

// SMASeries returns the simple moving average aligned with closes.
func SMASeries(closes []float64, window int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) < window {
		return out
	}
	sma := talib.Sma(closes, window)
	for i := window - 1; i < len(closes); i++ {
		out[i] = sma[i]
	}
	return out
}

// BollingerBands returns upper, middle and lower bands aligned with closes,
// using the population standard deviation.
func BollingerBands(closes []float64, window int, numStd float64) (upper, middle, lower []float64) {
	upper, middle, lower = nanSeries(len(closes)), nanSeries(len(closes)), nanSeries(len(closes))
	if len(closes) < window {
		return upper, middle, lower
	}
	u, m, l := talib.BBands(closes, window, numStd, numStd, talib.SMA)
	for i := window - 1; i < len(closes); i++ {
		upper[i], middle[i], lower[i] = u[i], m[i], l[i]
	}
	return upper, middle, lower
}

// RollingVolatility returns annualized volatility of log returns over a
// trailing window, aligned with prices. out[i] covers the returns ending at price i.
func RollingVolatility(prices []float64, window int) []float64 {
	out := nanSeries(len(prices))
	if len(prices) < window+1 {
		return out
	}
	returns := LogReturns(prices)
	sd := talib.StdDev(returns, window, 1.0)
	for i := window; i < len(prices); i++ {
		out[i] = sd[i-1] * math.Sqrt(TradingDays)
	}
	return out
}

// LatestVolatility returns the most recent rolling volatility, or 0.
func LatestVolatility(prices []float64, window int) float64 {
	series := RollingVolatility(prices, window)
	for i := len(series) - 1; i >= 0; i-- {
		if !isNaN(series[i]) {
			return series[i]
		}
	}
	return 0
}

// Autocorrelation returns the rolling lag-k autocorrelation of log returns,
// aligned with prices.
func Autocorrelation(prices []float64, window, lag int) []float64 {
	out := nanSeries(len(prices))
	if len(prices) < window+lag+1 {
		return out
	}
	returns := LogReturns(prices)
	for i := window + lag; i <= len(returns); i++ {
		corr := Correlation(returns[i-window:i], returns[i-window-lag:i-lag])
		if !isNaN(corr) {
			out[i] = corr
		}
	}
	return out
}

// MaxDrawdown returns the worst peak-to-trough decline as a value <= 0
// (-0.25 is a 25% loss from peak).
func MaxDrawdown(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}

	worst := 0.0
	peak := prices[0]
	for _, price := range prices {
		if price > peak {
			peak = price
		}
		if peak > 0 {
			if dd := (price - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Momentum returns the fractional price change over the last window days,
// or 0 when there is not enough history.
func Momentum(prices []float64, window int) float64 {
	if len(prices) < window+1 {
		return 0
	}
	start := prices[len(prices)-window-1]
	if start <= 0 {
		return 0
	}
	return (prices[len(prices)-1] - start) / start
}

// TrendSlope returns the least-squares slope over the last window prices,
// normalized by their mean. Returns 0 when there is not enough history.
func TrendSlope(prices []float64, window int) float64 {
	if len(prices) < window {
		return 0
	}
	y := prices[len(prices)-window:]
	x := make([]float64, window)
	for i := range x {
		x[i] = float64(i)
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	mean := stat.Mean(y, nil)
	if mean == 0 {
		return 0
	}
	return beta / mean
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
