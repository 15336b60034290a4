// Package cases manages cases and the market events recorded against them.
package cases

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

// Repository handles the cases and events tables.
// Cases are immutable once created; events are append-only.
type Repository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewRepository creates a new case repository.
//
// Parameters:
//   - q: *sql.DB, or a *sql.Tx to run inside a transaction
//   - log: Structured logger
func NewRepository(q database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		q:   q,
		log: log.With().Str("repo", "cases").Logger(),
	}
}

// CreateCase inserts a new case.
//
// Parameters:
//   - c: The case to insert; CaseID must be unique
//
// Returns:
//   - error: Error if the insert fails or the id already exists
func (r *Repository) CreateCase(ctx context.Context, c domain.Case) error {
	inputs, err := json.Marshal(c.Inputs)
	if err != nil {
		return fmt.Errorf("failed to encode case inputs: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO cases (case_id, asset, persona_id, created_at, inputs_json)
		VALUES (?, ?, ?, ?, ?)
	`, c.CaseID, c.Asset, c.PersonaID, c.CreatedAt.UnixNano(), string(inputs))
	if err != nil {
		return fmt.Errorf("failed to insert case %s: %w", c.CaseID, err)
	}

	r.log.Debug().Str("case_id", c.CaseID).Str("asset", c.Asset).Msg("Case created")
	return nil
}

// GetCase retrieves a case by id.
//
// Parameters:
//   - caseID: Case identifier
//
// Returns:
//   - *domain.Case: The case, or nil if it does not exist
//   - error: Error if the query fails
func (r *Repository) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	var (
		c         domain.Case
		createdAt int64
		inputs    string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT case_id, asset, persona_id, created_at, inputs_json
		FROM cases
		WHERE case_id = ?
	`, caseID).Scan(&c.CaseID, &c.Asset, &c.PersonaID, &createdAt, &inputs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", caseID, err)
	}

	if err := json.Unmarshal([]byte(inputs), &c.Inputs); err != nil {
		return nil, fmt.Errorf("failed to decode inputs of case %s: %w", caseID, err)
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return &c, nil
}

// InsertEvent appends a market event to a case.
//
// Parameters:
//   - eventID: Unique event identifier
//   - caseID: Owning case; must exist
//   - event: The market event as received
//
// Returns:
//   - error: Error if the insert fails
func (r *Repository) InsertEvent(ctx context.Context, eventID, caseID string, event domain.MarketEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", eventID, err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO events (event_id, case_id, asset, event_type, severity, occurred_at, event_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, eventID, caseID, event.Asset, string(event.EventType), event.Severity, event.OccurredAt.UnixNano(), string(raw))
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", eventID, err)
	}
	return nil
}

// CountEvents returns the number of events recorded for a case.
func (r *Repository) CountEvents(ctx context.Context, caseID string) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE case_id = ?", caseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events for %s: %w", caseID, err)
	}
	return n, nil
}
