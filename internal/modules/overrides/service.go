// Package overrides records manual human interventions on strategies.
package overrides

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/database"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/memory"
)

// LastOverride is the persona's most recent override as kept in memory.
type LastOverride struct {
	At time.Time `json:"at"`
	domain.Override
}

// Service writes overrides into the governor's memory, where they raise the
// persona's panic likelihood and surface as incidents for the asset.
type Service struct {
	db  *sql.DB
	bus *events.Bus
	now func() time.Time
	log zerolog.Logger
}

// NewService creates an override service.
func NewService(db *sql.DB, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		bus: bus,
		now: func() time.Time { return time.Now().UTC() },
		log: log.With().Str("service", "overrides").Logger(),
	}
}

// Record applies an override in one storage transaction: the persona's
// override counter is incremented, an incident vector is added to the
// asset scope and the override becomes the persona's last_override.
// Returns the new vector id.
func (s *Service) Record(ctx context.Context, o domain.Override) (string, error) {
	if !o.StrategyID.Valid() {
		return "", fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidInput, o.StrategyID)
	}
	if o.OccurredAt.IsZero() {
		o.OccurredAt = s.now()
	}

	var vectorID string
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		store := memory.NewStore(tx, s.log).WithClock(s.now)
		scope := domain.PersonaScope(o.PersonaID)

		var behavior domain.BehaviorRecord
		if _, err := store.Get(ctx, scope, domain.KeyBehavior, &behavior); err != nil {
			return err
		}
		behavior.Overrides++
		if err := store.Set(ctx, scope, domain.KeyBehavior, behavior); err != nil {
			return err
		}

		id, err := store.AddVector(ctx, domain.AssetScope(o.Asset), IncidentText(o), o)
		if err != nil {
			return err
		}
		vectorID = id

		return store.Set(ctx, scope, domain.KeyLastOverride, LastOverride{At: o.OccurredAt, Override: o})
	})
	if err != nil {
		return "", fmt.Errorf("failed to record override: %w", err)
	}

	s.bus.Publish("overrides", &events.OverrideRecordedData{Override: o, VectorID: vectorID})

	s.log.Info().
		Str("case_id", o.CaseID).
		Str("persona_id", o.PersonaID).
		Str("strategy_id", string(o.StrategyID)).
		Str("override_type", string(o.OverrideType)).
		Str("vector_id", vectorID).
		Msg("Override recorded")

	return vectorID, nil
}

// IncidentText is the vector memory text for an override. It always
// contains the word "override", which viability looks for when
// tightening momentum exposure.
func IncidentText(o domain.Override) string {
	value := "none"
	if o.Value != nil {
		value = strconv.FormatFloat(*o.Value, 'f', -1, 64)
	}
	return fmt.Sprintf("override asset=%s persona=%s type=%s strategy=%s value=%s reason=%s",
		o.Asset, o.PersonaID, o.OverrideType, o.StrategyID, value, o.Reason)
}
