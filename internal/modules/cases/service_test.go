package cases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/memory"
	"github.com/aristath/riskgovernor/internal/modules/decisions"
	testingpkg "github.com/aristath/riskgovernor/internal/testing"
)

func persona(id string) domain.PersonaInputs {
	return domain.PersonaInputs{
		PersonaID:           id,
		RiskTolerance:       domain.LevelMedium,
		TimeHorizon:         domain.HorizonLong,
		DrawdownSensitivity: domain.LevelHigh,
	}
}

func TestService_CreateCase(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cases")
	defer cleanup()

	bus := events.NewBus(zerolog.Nop())
	var published []*events.CaseCreatedData
	bus.Subscribe(events.CaseCreated, func(e *events.Event) {
		published = append(published, e.Data.(*events.CaseCreatedData))
	})

	svc := NewService(db.Conn(), bus, zerolog.Nop())
	ctx := context.Background()

	c, err := svc.CreateCase(ctx, "SPY", persona("p1"))
	require.NoError(t, err)

	assert.Regexp(t, `^case_[0-9a-f]{32}$`, c.CaseID)
	assert.Equal(t, "SPY", c.Asset)
	assert.Equal(t, "p1", c.PersonaID)
	assert.Equal(t, domain.LevelHigh, c.Inputs.Persona.DrawdownSensitivity)

	stored, err := NewRepository(db.Conn(), zerolog.Nop()).GetCase(ctx, c.CaseID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, c.Inputs, stored.Inputs)
	assert.True(t, stored.CreatedAt.Equal(c.CreatedAt))

	var behavior domain.BehaviorRecord
	found, err := memory.NewStore(db.Conn(), zerolog.Nop()).Get(ctx, "persona:p1", "behavior", &behavior)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.BehaviorRecord{}, behavior)

	require.Len(t, published, 1)
	assert.Equal(t, c.CaseID, published[0].CaseID)
}

func TestService_CreateCase_KeepsExistingBehavior(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cases")
	defer cleanup()

	ctx := context.Background()
	store := memory.NewStore(db.Conn(), zerolog.Nop())
	existing := domain.BehaviorRecord{PanicEvents: 2, Overrides: 5, LastPanicDrawdown: -0.22}
	require.NoError(t, store.Set(ctx, "persona:p1", "behavior", existing))

	svc := NewService(db.Conn(), events.NewBus(zerolog.Nop()), zerolog.Nop())
	_, err := svc.CreateCase(ctx, "SPY", persona("p1"))
	require.NoError(t, err)

	var behavior domain.BehaviorRecord
	_, err = store.Get(ctx, "persona:p1", "behavior", &behavior)
	require.NoError(t, err)
	assert.Equal(t, existing, behavior)
}

func TestService_CreateCase_RejectsEmptyAsset(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cases")
	defer cleanup()

	svc := NewService(db.Conn(), events.NewBus(zerolog.Nop()), zerolog.Nop())
	_, err := svc.CreateCase(context.Background(), "  ", persona("p1"))

	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestService_GetReport(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cases")
	defer cleanup()

	ctx := context.Background()
	svc := NewService(db.Conn(), events.NewBus(zerolog.Nop()), zerolog.Nop())
	c, err := svc.CreateCase(ctx, "SPY", persona("p1"))
	require.NoError(t, err)

	report, err := svc.GetReport(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, c.CaseID, report.CaseID)
	assert.Empty(t, report.Runs)

	ledger := decisions.NewRepository(db.Conn(), zerolog.Nop())
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.InsertAudit(ctx, domain.AuditRecord{AuditID: "audit_b", CaseID: c.CaseID, Asset: "SPY", CreatedAt: t0.Add(time.Second)}))
	require.NoError(t, ledger.InsertAudit(ctx, domain.AuditRecord{AuditID: "audit_a", CaseID: c.CaseID, Asset: "SPY", CreatedAt: t0}))

	report, err = svc.GetReport(ctx, c.CaseID)
	require.NoError(t, err)
	require.Len(t, report.Runs, 2)
	assert.Equal(t, "audit_a", report.Runs[0].AuditID)
	assert.Equal(t, "audit_b", report.Runs[1].AuditID)
}

func TestService_GetReport_NotFound(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cases")
	defer cleanup()

	svc := NewService(db.Conn(), events.NewBus(zerolog.Nop()), zerolog.Nop())
	_, err := svc.GetReport(context.Background(), "case_missing")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRepository_InsertEvent(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cases")
	defer cleanup()

	ctx := context.Background()
	svc := NewService(db.Conn(), events.NewBus(zerolog.Nop()), zerolog.Nop())
	c, err := svc.CreateCase(ctx, "SPY", persona("p1"))
	require.NoError(t, err)

	repo := NewRepository(db.Conn(), zerolog.Nop())
	event := domain.MarketEvent{
		Asset:      "SPY",
		EventType:  domain.EventVolSpike,
		Severity:   0.7,
		Details:    map[string]any{"source": "test"},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.InsertEvent(ctx, "evt_1", c.CaseID, event))
	assert.Error(t, repo.InsertEvent(ctx, "evt_1", c.CaseID, event))
	assert.Error(t, repo.InsertEvent(ctx, "evt_2", "case_missing", event))

	n, err := repo.CountEvents(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = db.Conn().Exec("DELETE FROM events")
	assert.Error(t, err)
}
