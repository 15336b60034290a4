package dispatch

import (
	"errors"
	"fmt"

	"github.com/aristath/riskgovernor/internal/domain"
)

// ErrBudgetExceeded is matched by every *ExceededError.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Limits are the deployment-wide caps for one transaction.
type Limits struct {
	MaxSteps         int
	MaxReasonerCalls int
	MaxSkillCalls    int
}

// DefaultLimits returns the default caps: 8 steps, 12 stage calls, 24 skill calls.
func DefaultLimits() Limits {
	return Limits{MaxSteps: 8, MaxReasonerCalls: 12, MaxSkillCalls: 24}
}

// ExceededError reports which counter went over its cap.
type ExceededError struct {
	Counter string
	Used    int
	Max     int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s exceeded: %d/%d", e.Counter, e.Used, e.Max)
}

// Is makes errors.Is(err, ErrBudgetExceeded) true.
func (e *ExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// Budget is the transaction-scoped execution budget. It is not safe for
// concurrent use; a transaction charges it from one goroutine.
type Budget struct {
	limits            Limits
	stepsUsed         int
	reasonerCallsUsed int
	skillCallsUsed    int
}

// NewBudget creates a fresh budget with the given limits.
func NewBudget(limits Limits) *Budget {
	return &Budget{limits: limits}
}

// Limits returns the caps this budget enforces.
func (b *Budget) Limits() Limits {
	return b.limits
}

// BumpStep charges one coordinator-loop iteration.
func (b *Budget) BumpStep() error {
	b.stepsUsed++
	if b.stepsUsed > b.limits.MaxSteps {
		return &ExceededError{Counter: "max_steps", Used: b.stepsUsed, Max: b.limits.MaxSteps}
	}
	return nil
}

// BumpReasoner charges one decision-stage call.
func (b *Budget) BumpReasoner() error {
	b.reasonerCallsUsed++
	if b.reasonerCallsUsed > b.limits.MaxReasonerCalls {
		return &ExceededError{Counter: "max_reasoner_calls", Used: b.reasonerCallsUsed, Max: b.limits.MaxReasonerCalls}
	}
	return nil
}

// BumpSkill charges one skill call.
func (b *Budget) BumpSkill() error {
	b.skillCallsUsed++
	if b.skillCallsUsed > b.limits.MaxSkillCalls {
		return &ExceededError{Counter: "max_skill_calls", Used: b.skillCallsUsed, Max: b.limits.MaxSkillCalls}
	}
	return nil
}

// Usage returns a snapshot of the counters.
func (b *Budget) Usage() domain.BudgetUsage {
	return domain.BudgetUsage{
		StepsUsed:         b.stepsUsed,
		ReasonerCallsUsed: b.reasonerCallsUsed,
		SkillCallsUsed:    b.skillCallsUsed,
	}
}
