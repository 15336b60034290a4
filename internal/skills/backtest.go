package skills

import (
	"context"
	"fmt"
	"math"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/pkg/formulas"
)

var strategySignals = map[domain.StrategyID]func([]float64) []int{
	domain.StrategyFire:  formulas.MomentumSignals,
	domain.StrategyWater: formulas.ConservativeSignals,
	domain.StrategyGrass: formulas.AdaptiveSignals,
}

// RunBacktest simulates a strategy over prices and then applies the effect
// of its constraints: the position cap scales return and drawdown, the trade
// frequency cap throttles trading, and a stop loss bounds the drawdown at a
// cost to return.
func RunBacktest(_ context.Context, c dispatch.RunBacktest) (domain.BacktestResult, error) {
	signals, ok := strategySignals[c.StrategyID]
	if !ok {
		return domain.BacktestResult{}, fmt.Errorf("%w: unknown strategy_id: %s", domain.ErrInvalidInput, c.StrategyID)
	}
	if err := validateConstraints(c.Constraints); err != nil {
		return domain.BacktestResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	base := formulas.Simulate(c.Prices, signals(c.Prices))

	capPct := c.Constraints.PositionCapPct
	totalReturn := formulas.Round(base.TotalReturn*capPct, 4)
	maxDD := formulas.Round(base.MaxDrawdown*capPct, 4)
	vol := base.Volatility
	trades := base.Trades

	if freq := c.Constraints.MaxTradeFreqPerDay; freq <= 0 {
		trades = 0
		totalReturn = formulas.Round(totalReturn*0.5, 4)
	} else {
		throttle := formulas.Clamp(float64(freq)/5.0, 0.1, 1.0)
		trades = int(float64(trades) * throttle)
		vol = formulas.Round(vol*(0.9+0.1*throttle), 4)
	}

	stop := c.Constraints.StopLossPolicy
	if stop.Type != domain.StopLossNone && stop.Pct != nil {
		maxDD = formulas.Round(-math.Min(math.Abs(maxDD), *stop.Pct), 4)
		totalReturn = formulas.Round(totalReturn*0.92, 4)
	}

	return domain.BacktestResult{
		StrategyID:           c.StrategyID,
		TotalReturn:          totalReturn,
		AnnualizedVolatility: vol,
		Sharpe:               formulas.Round(base.Sharpe, 4),
		MaxDrawdown:          maxDD,
		Trades:               trades,
	}, nil
}
