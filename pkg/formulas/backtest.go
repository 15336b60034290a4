package formulas

import "math"

// BacktestMetrics summarises a simulated long/flat portfolio.
type BacktestMetrics struct {
	TotalReturn    float64 `json:"total_return"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	Volatility     float64 `json:"volatility"`
	Sharpe         float64 `json:"sharpe_ratio"`
	Trades         int     `json:"trades"`
	WinRate        float64 `json:"win_rate"`
	AvgTradeReturn float64 `json:"avg_trade_return"`
}

const (
	initialCapital = 10000.0
	riskFreeRate   = 0.04
)

// Simulate runs a long/flat portfolio over prices. signals[i] == 1 means
// hold the asset at day i, anything else means hold cash.
func Simulate(prices []float64, signals []int) BacktestMetrics {
	if len(prices) < 2 {
		return BacktestMetrics{}
	}

	capital := initialCapital
	position := 0.0
	entry := 0.0
	trades := 0
	var tradeReturns []float64
	values := []float64{initialCapital}

	for i := 1; i < len(prices); i++ {
		signal := 0
		if i < len(signals) {
			signal = signals[i]
		}

		switch {
		case signal == 1 && position == 0:
			position = capital / prices[i]
			entry = prices[i]
			capital = 0
			trades++
		case signal <= 0 && position > 0:
			capital = position * prices[i]
			tradeReturns = append(tradeReturns, (prices[i]-entry)/entry)
			position = 0
		}

		if position > 0 {
			values = append(values, position*prices[i])
		} else {
			values = append(values, capital)
		}
	}

	// Close any open position
	if position > 0 {
		last := prices[len(prices)-1]
		capital = position * last
		tradeReturns = append(tradeReturns, (last-entry)/entry)
		values[len(values)-1] = capital
	}

	daily := SimpleReturns(values)
	excess := make([]float64, len(daily))
	for i, r := range daily {
		excess[i] = r - riskFreeRate/TradingDays
	}

	sharpe := 0.0
	if sd := PopStdDev(excess); sd > 0 {
		sharpe = Mean(excess) / sd * math.Sqrt(TradingDays)
	}

	wins := 0
	for _, r := range tradeReturns {
		if r > 0 {
			wins++
		}
	}
	winRate := 0.0
	if len(tradeReturns) > 0 {
		winRate = float64(wins) / float64(len(tradeReturns))
	}

	return BacktestMetrics{
		TotalReturn:    Round((values[len(values)-1]-initialCapital)/initialCapital, 4),
		MaxDrawdown:    Round(MaxDrawdown(values), 4),
		Volatility:     Round(PopStdDev(daily)*math.Sqrt(TradingDays), 4),
		Sharpe:         Round(sharpe, 2),
		Trades:         trades,
		WinRate:        Round(winRate, 4),
		AvgTradeReturn: Round(Mean(tradeReturns), 4),
	}
}

// MomentumSignals: long on a fast/slow SMA golden cross confirmed by RSI > 50,
// flat on a death cross or RSI < 40.
func MomentumSignals(prices []float64) []int {
	const fastWindow, slowWindow, rsiWindow = 10, 30, 14

	fast := SMASeries(prices, fastWindow)
	slow := SMASeries(prices, slowWindow)
	rsi := RSISeries(prices, rsiWindow)

	signals := make([]int, len(prices))
	for i := max(fastWindow, slowWindow, rsiWindow+1); i < len(prices); i++ {
		if isNaN(fast[i]) || isNaN(slow[i]) || isNaN(rsi[i]) {
			continue
		}
		switch {
		case fast[i] > slow[i] && rsi[i] > 50:
			signals[i] = 1
		case fast[i] < slow[i] || rsi[i] < 40:
			signals[i] = 0
		default:
			signals[i] = signals[i-1]
		}
	}
	return signals
}

// ConservativeSignals: mean reversion, long near the lower Bollinger band
// when oversold, flat near the upper band or when overbought.
func ConservativeSignals(prices []float64) []int {
	const bbWindow, rsiWindow = 20, 14

	upper, _, lower := BollingerBands(prices, bbWindow, 2.0)
	rsi := RSISeries(prices, rsiWindow)

	signals := make([]int, len(prices))
	for i := max(bbWindow, rsiWindow+1); i < len(prices); i++ {
		if isNaN(lower[i]) || isNaN(upper[i]) || isNaN(rsi[i]) {
			continue
		}
		switch {
		case prices[i] <= lower[i]*1.02 && rsi[i] < 35:
			signals[i] = 1
		case prices[i] >= upper[i]*0.98 || rsi[i] > 70:
			signals[i] = 0
		default:
			signals[i] = signals[i-1]
		}
	}
	return signals
}

// AdaptiveSignals switches on the detected regime: cash in high volatility,
// SMA crossover when returns are autocorrelated, Bollinger reversion otherwise.
func AdaptiveSignals(prices []float64) []int {
	const regimeWindow, fastWindow, slowWindow, bbWindow = 30, 10, 30, 20

	vol := RollingVolatility(prices, regimeWindow)
	autocorr := Autocorrelation(prices, regimeWindow, 1)
	fast := SMASeries(prices, fastWindow)
	slow := SMASeries(prices, slowWindow)
	upper, _, lower := BollingerBands(prices, bbWindow, 2.0)
	rsi := RSISeries(prices, 14)

	signals := make([]int, len(prices))
	for i := max(regimeWindow+1, slowWindow, bbWindow); i < len(prices); i++ {
		if isNaN(vol[i]) {
			continue
		}

		switch {
		case vol[i] > 0.30:
			signals[i] = 0
		case !isNaN(autocorr[i]) && autocorr[i] > 0.1:
			if isNaN(fast[i]) || isNaN(slow[i]) {
				signals[i] = signals[i-1]
			} else if fast[i] > slow[i] {
				signals[i] = 1
			} else {
				signals[i] = 0
			}
		default:
			if isNaN(lower[i]) || isNaN(upper[i]) || isNaN(rsi[i]) {
				signals[i] = signals[i-1]
			} else if prices[i] <= lower[i]*1.02 && rsi[i] < 40 {
				signals[i] = 1
			} else if prices[i] >= upper[i]*0.98 || rsi[i] > 65 {
				signals[i] = 0
			} else {
				signals[i] = signals[i-1]
			}
		}
	}
	return signals
}
