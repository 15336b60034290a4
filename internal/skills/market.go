package skills

import (
	"context"
	"fmt"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/marketdata"
	"github.com/aristath/riskgovernor/pkg/formulas"
)

const (
	volatilityWindow = 20
	momentumWindow   = 20
	rsiWindow        = 14
	slopeWindow      = 30
	neutralRSI       = 50.0
)

// Market serves price history.
type Market struct {
	prices marketdata.Provider
}

// NewMarket creates the market skill over a price provider.
func NewMarket(prices marketdata.Provider) *Market {
	return &Market{prices: prices}
}

// FetchMarketData loads a price window for an asset.
func (m *Market) FetchMarketData(ctx context.Context, c dispatch.FetchMarketData) (domain.PriceSeries, error) {
	prices, err := m.prices.Prices(ctx, c.Asset, c.Window)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("failed to fetch prices for %s: %w", c.Asset, err)
	}
	return domain.PriceSeries{Asset: c.Asset, Window: c.Window, Prices: prices}, nil
}

// ComputeIndicators derives the indicator snapshot from prices.
func ComputeIndicators(_ context.Context, c dispatch.ComputeIndicators) (domain.IndicatorSnapshot, error) {
	rsi := neutralRSI
	if v := formulas.CalculateRSI(c.Prices, rsiWindow); v != nil {
		rsi = *v
	}

	return domain.IndicatorSnapshot{
		Volatility:  formulas.Round(formulas.LatestVolatility(c.Prices, volatilityWindow), 4),
		MaxDrawdown: formulas.Round(formulas.MaxDrawdown(c.Prices), 4),
		Momentum20d: formulas.Round(formulas.Momentum(c.Prices, momentumWindow), 4),
		RSI14:       formulas.Round(rsi, 2),
		TrendSlope:  formulas.Round(formulas.TrendSlope(c.Prices, slopeWindow), 6),
	}, nil
}
