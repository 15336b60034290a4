package domain

import "context"

// AuditLedger persists write-once audit and decision rows.
type AuditLedger interface {
	InsertAudit(ctx context.Context, record AuditRecord) error
	InsertDecision(ctx context.Context, record DecisionRecord) error
}
