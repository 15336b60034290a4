// Package marketdata supplies price history to the governor.
package marketdata

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/aristath/riskgovernor/internal/domain"
)

// Provider returns daily closing prices for an asset, oldest first.
type Provider interface {
	Prices(ctx context.Context, asset string, window int) ([]float64, error)
}

const (
	annualReturn = 0.08
	annualVol    = 0.18
)

var startPrices = map[string]float64{
	"SPY": 450.0,
	"BTC": 45000.0,
	"QQQ": 380.0,
	"IWM": 200.0,
}

// quarter describes one of the four market phases the synthetic series cycles through.
type quarter struct {
	muScale    float64
	sigmaScale float64
}

var quarters = [4]quarter{
	{1.5, 0.8},  // bull
	{0.2, 1.8},  // high volatility
	{-0.5, 1.3}, // bear
	{1.2, 1.0},  // recovery
}

// Synthetic generates deterministic prices with geometric Brownian motion.
// The same asset and window always yield the same series.
type Synthetic struct{}

// NewSynthetic creates the synthetic provider.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Prices implements Provider.
func (s *Synthetic) Prices(ctx context.Context, asset string, window int) ([]float64, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: window must be positive, got %d", domain.ErrInvalidInput, window)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var seed uint64
	for _, b := range []byte(asset) {
		seed += uint64(b)
	}
	seed *= 42
	rng := rand.New(rand.NewPCG(seed, seed))

	start, ok := startPrices[strings.ToUpper(asset)]
	if !ok {
		start = 100.0
	}

	dailyReturn := annualReturn / 252
	dailyVol := annualVol / math.Sqrt(252)
	regimeLength := max(1, window/4)

	prices := make([]float64, 1, window)
	prices[0] = start
	for day := 1; day < window; day++ {
		q := quarters[(day/regimeLength)%4]
		mu := dailyReturn * q.muScale
		sigma := dailyVol * q.sigmaScale
		shock := mu + sigma*rng.NormFloat64()
		prices = append(prices, prices[day-1]*math.Exp(shock))
	}
	return prices, nil
}
