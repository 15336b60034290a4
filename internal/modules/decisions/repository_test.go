package decisions

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskgovernor/internal/domain"
	testingpkg "github.com/aristath/riskgovernor/internal/testing"
)

func seedCase(t *testing.T, conn *sql.DB, caseID, asset string) {
	t.Helper()
	_, err := conn.Exec(`INSERT INTO cases (case_id, asset, persona_id, created_at, inputs_json)
		VALUES (?, ?, 'p1', 0, '{}')`, caseID, asset)
	require.NoError(t, err)
}

func guardFor(asset string, asOf time.Time, cap float64) domain.ExecutionGuard {
	return domain.ExecutionGuard{
		Asset: asset,
		AsOf:  asOf,
		Strategies: map[domain.StrategyID]domain.GuardEntry{
			domain.StrategyFire: {
				StrategyID: domain.StrategyFire,
				Status:     domain.StatusEnabled,
				Constraints: domain.StrategyConstraints{
					PositionCapPct:     cap,
					MaxTradeFreqPerDay: 20,
					StopLossPolicy:     domain.StopLossPolicy{Type: domain.StopLossNone},
				},
				AllowedActions: []domain.Action{domain.ActionEnable},
			},
		},
		Escalations: []domain.Escalation{},
	}
}

func insertRun(t *testing.T, repo *Repository, caseID, asset, suffix string, asOf time.Time, cap float64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repo.InsertAudit(ctx, domain.AuditRecord{
		AuditID:   "audit_" + suffix,
		CaseID:    caseID,
		Asset:     asset,
		CreatedAt: asOf,
	}))
	require.NoError(t, repo.InsertDecision(ctx, domain.DecisionRecord{
		DecisionID: "dec_" + suffix,
		CaseID:     caseID,
		Asset:      asset,
		AsOf:       asOf,
		Guard:      guardFor(asset, asOf, cap),
		AuditID:    "audit_" + suffix,
	}))
}

func TestRepository_GetLatestGuard_None(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	guard, err := repo.GetLatestGuard(context.Background(), "SPY")

	require.NoError(t, err)
	assert.Nil(t, guard)
}

func TestRepository_GetLatestGuard_NewestWins(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	seedCase(t, db.Conn(), "case_1", "SPY")
	repo := NewRepository(db.Conn(), zerolog.Nop())

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertRun(t, repo, "case_1", "SPY", "a", t0, 0.3)
	insertRun(t, repo, "case_1", "SPY", "b", t0.Add(time.Minute), 0.2)

	guard, err := repo.GetLatestGuard(context.Background(), "SPY")
	require.NoError(t, err)
	require.NotNil(t, guard)

	assert.Equal(t, "SPY", guard.Asset)
	assert.True(t, guard.AsOf.Equal(t0.Add(time.Minute)))
	assert.Equal(t, 0.2, guard.Strategies[domain.StrategyFire].Constraints.PositionCapPct)
}

func TestRepository_GetLatestGuard_SameTimestampUsesInsertionOrder(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	seedCase(t, db.Conn(), "case_1", "SPY")
	repo := NewRepository(db.Conn(), zerolog.Nop())

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertRun(t, repo, "case_1", "SPY", "a", t0, 0.3)
	insertRun(t, repo, "case_1", "SPY", "b", t0, 0.1)

	guard, err := repo.GetLatestGuard(context.Background(), "SPY")
	require.NoError(t, err)
	require.NotNil(t, guard)
	assert.Equal(t, 0.1, guard.Strategies[domain.StrategyFire].Constraints.PositionCapPct)
}

func TestRepository_GetLatestGuard_ScopedByAsset(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	seedCase(t, db.Conn(), "case_spy", "SPY")
	seedCase(t, db.Conn(), "case_qqq", "QQQ")
	repo := NewRepository(db.Conn(), zerolog.Nop())

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertRun(t, repo, "case_spy", "SPY", "a", t0, 0.3)
	insertRun(t, repo, "case_qqq", "QQQ", "b", t0.Add(time.Hour), 0.1)

	guard, err := repo.GetLatestGuard(context.Background(), "SPY")
	require.NoError(t, err)
	require.NotNil(t, guard)
	assert.Equal(t, "SPY", guard.Asset)

	n, err := repo.CountDecisions(context.Background(), "QQQ")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_DuplicateDecisionRejected(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	seedCase(t, db.Conn(), "case_1", "SPY")
	repo := NewRepository(db.Conn(), zerolog.Nop())

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertRun(t, repo, "case_1", "SPY", "a", t0, 0.3)

	err := repo.InsertDecision(context.Background(), domain.DecisionRecord{
		DecisionID: "dec_a",
		CaseID:     "case_1",
		Asset:      "SPY",
		AsOf:       t0,
		Guard:      guardFor("SPY", t0, 0.3),
		AuditID:    "audit_a",
	})
	assert.Error(t, err)
}

func TestRepository_DuplicateAuditRejected(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	seedCase(t, db.Conn(), "case_1", "SPY")
	repo := NewRepository(db.Conn(), zerolog.Nop())

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertRun(t, repo, "case_1", "SPY", "a", t0, 0.3)

	err := repo.InsertAudit(context.Background(), domain.AuditRecord{
		AuditID:   "audit_a",
		CaseID:    "case_1",
		Asset:     "SPY",
		CreatedAt: t0.Add(time.Minute),
	})
	assert.Error(t, err)

	runs, err := repo.ListAudits(context.Background(), "case_1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].CreatedAt.Equal(t0), "the original audit is kept")
}

func TestRepository_DecisionsAreAppendOnly(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	seedCase(t, db.Conn(), "case_1", "SPY")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	insertRun(t, repo, "case_1", "SPY", "a", time.Now().UTC(), 0.3)

	_, err := db.Conn().Exec("UPDATE decisions SET asset = 'QQQ'")
	assert.Error(t, err)
	_, err = db.Conn().Exec("DELETE FROM audits")
	assert.Error(t, err)
}

func TestRepository_ListAudits(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	seedCase(t, db.Conn(), "case_1", "SPY")
	seedCase(t, db.Conn(), "case_2", "SPY")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hit := true
	require.NoError(t, repo.InsertAudit(ctx, domain.AuditRecord{
		AuditID:   "audit_2",
		CaseID:    "case_1",
		Asset:     "SPY",
		CreatedAt: t0.Add(time.Second),
		MemoryReads: []domain.MemoryRead{
			{Kind: domain.CitationKV, Scope: "persona:p1", Key: "behavior", Hit: &hit},
		},
	}))
	require.NoError(t, repo.InsertAudit(ctx, domain.AuditRecord{
		AuditID: "audit_1", CaseID: "case_1", Asset: "SPY", CreatedAt: t0,
	}))
	require.NoError(t, repo.InsertAudit(ctx, domain.AuditRecord{
		AuditID: "audit_other", CaseID: "case_2", Asset: "SPY", CreatedAt: t0,
	}))

	runs, err := repo.ListAudits(ctx, "case_1")
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "audit_1", runs[0].AuditID)
	assert.Equal(t, "audit_2", runs[1].AuditID)
	assert.True(t, runs[1].CreatedAt.Equal(t0.Add(time.Second)))
	assert.JSONEq(t, `[{"kind":"kv","scope":"persona:p1","key":"behavior","hit":true}]`, string(runs[1].MemoryReads))
	assert.JSONEq(t, `[]`, string(runs[0].Citations))
	assert.JSONEq(t, `[]`, string(runs[0].SelectedActions))
}

func TestRepository_ListAudits_Empty(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "decisions")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	runs, err := repo.ListAudits(context.Background(), "case_missing")

	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}
