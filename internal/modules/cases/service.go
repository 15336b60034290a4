package cases

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/database"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/memory"
	"github.com/aristath/riskgovernor/internal/modules/decisions"
)

// Service creates cases and assembles case reports.
type Service struct {
	db  *sql.DB
	bus *events.Bus
	now func() time.Time
	log zerolog.Logger
}

// NewService creates a case service.
func NewService(db *sql.DB, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		bus: bus,
		now: func() time.Time { return time.Now().UTC() },
		log: log.With().Str("service", "cases").Logger(),
	}
}

// CreateCase stores a new case and seeds the persona's behavior record
// with zeroed counters when the persona has none yet. An existing behavior
// record is left untouched.
func (s *Service) CreateCase(ctx context.Context, asset string, persona domain.PersonaInputs) (*domain.Case, error) {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return nil, fmt.Errorf("%w: asset is required", domain.ErrInvalidInput)
	}
	if persona.PersonaID == "" {
		return nil, fmt.Errorf("%w: persona_id is required", domain.ErrInvalidInput)
	}

	c := domain.Case{
		CaseID:    memory.NewID("case"),
		Asset:     asset,
		PersonaID: persona.PersonaID,
		CreatedAt: s.now(),
		Inputs:    domain.CaseInputs{Asset: asset, Persona: persona},
	}

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if err := NewRepository(tx, s.log).CreateCase(ctx, c); err != nil {
			return err
		}

		store := memory.NewStore(tx, s.log).WithClock(s.now)
		scope := domain.PersonaScope(persona.PersonaID)
		found, err := store.Get(ctx, scope, domain.KeyBehavior, nil)
		if err != nil {
			return err
		}
		if !found {
			if err := store.Set(ctx, scope, domain.KeyBehavior, domain.BehaviorRecord{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	s.bus.Publish("cases", &events.CaseCreatedData{
		CaseID:    c.CaseID,
		Asset:     c.Asset,
		PersonaID: c.PersonaID,
	})

	s.log.Info().
		Str("case_id", c.CaseID).
		Str("asset", c.Asset).
		Str("persona_id", c.PersonaID).
		Msg("Case created")

	return &c, nil
}

// GetReport returns the case with every audit run, oldest first.
func (s *Service) GetReport(ctx context.Context, caseID string) (*domain.CaseReport, error) {
	c, err := NewRepository(s.db, s.log).GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: case %s", domain.ErrNotFound, caseID)
	}

	runs, err := decisions.NewRepository(s.db, s.log).ListAudits(ctx, caseID)
	if err != nil {
		return nil, err
	}

	return &domain.CaseReport{
		CaseID:    c.CaseID,
		Asset:     c.Asset,
		PersonaID: c.PersonaID,
		CreatedAt: c.CreatedAt,
		Inputs:    c.Inputs,
		Runs:      runs,
	}, nil
}
