// Package decisions stores the append-only decision log and audit reports.
package decisions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/database"
	"github.com/aristath/riskgovernor/internal/domain"
)

// Repository handles the decisions and audits tables.
// Both tables are append-only: rows are inserted once and never updated,
// and a duplicate id is rejected by the primary key.
//
// The repository runs on any Querier, so the engine can bind one to its
// storage transaction and hand it to the persistence skills as a ledger.
type Repository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewRepository creates a new decisions repository.
//
// Parameters:
//   - q: *sql.DB for reads, or the transaction's *sql.Tx for ledger writes
//   - log: Structured logger
func NewRepository(q database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		q:   q,
		log: log.With().Str("repo", "decisions").Logger(),
	}
}

var _ domain.AuditLedger = (*Repository)(nil)

// InsertAudit writes one audit report.
// Every list column is stored as a JSON array, never null.
func (r *Repository) InsertAudit(ctx context.Context, a domain.AuditRecord) error {
	cols := make([]string, 0, 6)
	for _, v := range []any{a.Inputs, a.MemoryReads, a.MemoryWrites, a.ReasonerOutputs, a.SelectedActions, a.Citations} {
		raw, err := marshalColumn(v)
		if err != nil {
			return fmt.Errorf("failed to encode audit %s: %w", a.AuditID, err)
		}
		cols = append(cols, raw)
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audits (
			audit_id, case_id, asset, created_at, inputs_json, memory_reads_json,
			memory_writes_json, reasoner_outputs_json, selected_actions_json, citations_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.AuditID, a.CaseID, a.Asset, a.CreatedAt.UnixNano(),
		cols[0], cols[1], cols[2], cols[3], cols[4], cols[5])
	if err != nil {
		return fmt.Errorf("failed to insert audit %s: %w", a.AuditID, err)
	}
	return nil
}

// InsertDecision appends one guard to the decision log.
func (r *Repository) InsertDecision(ctx context.Context, d domain.DecisionRecord) error {
	guard, err := json.Marshal(d.Guard)
	if err != nil {
		return fmt.Errorf("failed to encode guard for decision %s: %w", d.DecisionID, err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO decisions (decision_id, case_id, asset, as_of, guard_json, audit_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.DecisionID, d.CaseID, d.Asset, d.AsOf.UnixNano(), string(guard), d.AuditID)
	if err != nil {
		return fmt.Errorf("failed to insert decision %s: %w", d.DecisionID, err)
	}
	return nil
}

// GetLatestGuard returns the most recent guard for an asset.
// Returns nil if the asset has no decisions yet (not an error).
// Decisions with the same as_of are ordered by insertion.
func (r *Repository) GetLatestGuard(ctx context.Context, asset string) (*domain.ExecutionGuard, error) {
	var raw string
	err := r.q.QueryRowContext(ctx, `
		SELECT guard_json FROM decisions
		WHERE asset = ?
		ORDER BY as_of DESC, rowid DESC
		LIMIT 1
	`, asset).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest guard for %s: %w", asset, err)
	}

	var guard domain.ExecutionGuard
	if err := json.Unmarshal([]byte(raw), &guard); err != nil {
		return nil, fmt.Errorf("failed to decode guard for %s: %w", asset, err)
	}
	return &guard, nil
}

// ListAudits returns every audit for a case, oldest first. JSON columns are
// returned exactly as stored.
func (r *Repository) ListAudits(ctx context.Context, caseID string) ([]domain.AuditRun, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT audit_id, created_at, inputs_json, memory_reads_json, memory_writes_json,
		       reasoner_outputs_json, selected_actions_json, citations_json
		FROM audits
		WHERE case_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits for %s: %w", caseID, err)
	}
	defer rows.Close()

	runs := make([]domain.AuditRun, 0)
	for rows.Next() {
		var (
			run       domain.AuditRun
			createdAt int64
			inputs    string
			reads     string
			writes    string
			outputs   string
			actions   string
			citations string
		)
		if err := rows.Scan(&run.AuditID, &createdAt, &inputs, &reads, &writes, &outputs, &actions, &citations); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		run.CreatedAt = time.Unix(0, createdAt).UTC()
		run.Inputs = json.RawMessage(inputs)
		run.MemoryReads = json.RawMessage(reads)
		run.MemoryWrites = json.RawMessage(writes)
		run.ReasonerOutputs = json.RawMessage(outputs)
		run.SelectedActions = json.RawMessage(actions)
		run.Citations = json.RawMessage(citations)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audits: %w", err)
	}
	return runs, nil
}

// CountDecisions returns how many guards have been logged for an asset.
func (r *Repository) CountDecisions(ctx context.Context, asset string) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions WHERE asset = ?", asset).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count decisions for %s: %w", asset, err)
	}
	return n, nil
}

func marshalColumn(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(raw) == "null" {
		return "[]", nil
	}
	return string(raw), nil
}
