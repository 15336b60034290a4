package skills

import (
	"context"
	"fmt"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
)

// PersistAudit writes the audit through the transaction's ledger.
func PersistAudit(ctx context.Context, c dispatch.PersistAudit) (string, error) {
	if c.Ledger == nil {
		return "", fmt.Errorf("%w: persist_audit without a ledger", domain.ErrInvariantViolation)
	}
	if err := c.Ledger.InsertAudit(ctx, c.Record); err != nil {
		return "", err
	}
	return c.Record.AuditID, nil
}

// PersistDecision writes the decision through the transaction's ledger.
func PersistDecision(ctx context.Context, c dispatch.PersistDecision) (string, error) {
	if c.Ledger == nil {
		return "", fmt.Errorf("%w: persist_decision without a ledger", domain.ErrInvariantViolation)
	}
	if err := c.Ledger.InsertDecision(ctx, c.Record); err != nil {
		return "", err
	}
	return c.Record.DecisionID, nil
}
