package skills

import (
	"context"
	"fmt"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
)

// ApplyPolicyConstraints turns a strategy decision into a guard entry.
// Strategy ids off the allow-list and out-of-range constraints are invariant
// violations.
func ApplyPolicyConstraints(_ context.Context, c dispatch.ApplyPolicyConstraints) (domain.GuardEntry, error) {
	if !c.StrategyID.Valid() {
		return domain.GuardEntry{}, fmt.Errorf("%w: strategy id %q is not allow-listed", domain.ErrInvariantViolation, c.StrategyID)
	}
	if c.Status != domain.StatusEnabled && c.Status != domain.StatusDisabled {
		return domain.GuardEntry{}, fmt.Errorf("%w: unknown status %q for %s", domain.ErrInvariantViolation, c.Status, c.StrategyID)
	}
	if err := validateConstraints(c.Constraints); err != nil {
		return domain.GuardEntry{}, fmt.Errorf("%w: %s: %v", domain.ErrInvariantViolation, c.StrategyID, err)
	}

	return domain.GuardEntry{
		StrategyID:     c.StrategyID,
		Status:         c.Status,
		Constraints:    c.Constraints,
		AllowedActions: append([]domain.Action(nil), domain.AllowedActions...),
	}, nil
}

func validateConstraints(c domain.StrategyConstraints) error {
	if c.PositionCapPct < 0 || c.PositionCapPct > 1 {
		return fmt.Errorf("position_cap_pct %v outside [0,1]", c.PositionCapPct)
	}
	if c.MaxTradeFreqPerDay < 0 || c.MaxTradeFreqPerDay > 100 {
		return fmt.Errorf("max_trade_freq_per_day %d outside [0,100]", c.MaxTradeFreqPerDay)
	}
	switch c.StopLossPolicy.Type {
	case domain.StopLossNone:
	case domain.StopLossFixed, domain.StopLossTrailing:
		if p := c.StopLossPolicy.Pct; p != nil && (*p < 0 || *p > 1) {
			return fmt.Errorf("stop loss pct %v outside [0,1]", *p)
		}
	default:
		return fmt.Errorf("unknown stop loss type %q", c.StopLossPolicy.Type)
	}
	return nil
}
