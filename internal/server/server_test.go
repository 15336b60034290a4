package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskgovernor/internal/config"
	"github.com/aristath/riskgovernor/internal/di"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
	testingpkg "github.com/aristath/riskgovernor/internal/testing"
)

type testServer struct {
	*httptest.Server
	container *di.Container
	notifier  *testingpkg.MockNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Host:                "127.0.0.1",
		Port:                8090,
		DBPath:              filepath.Join(t.TempDir(), "risk_governor.db"),
		NodeID:              "risk-governor",
		AllowedOrigins:      []string{"*"},
		Budget:              config.BudgetConfig{MaxSteps: 8, MaxReasonerCalls: 12, MaxSkillCalls: 24},
		Kafka:               config.KafkaConfig{Topic: "risk-events"},
		MaintenanceSchedule: "0 */30 * * * *",
	}

	prices := testingpkg.NewMockPriceProvider()
	prices.SetPrices("SPY", testingpkg.TrendingPrices(252, 100, 0.003))
	notifier := testingpkg.NewMockNotifier()

	container, err := di.Wire(cfg, zerolog.Nop(), di.WithCollaborators(prices, notifier, testingpkg.NewMockRiskEmitter()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	srv := New(Config{Log: zerolog.Nop(), Addr: cfg.Addr(), DevMode: true, Container: container})
	srv.system.systemStats = func() (float64, float64) { return 12.5, 40 }

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, container: container, notifier: notifier}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var resp HealthResponse
	status := ts.do(t, http.MethodGet, "/health", nil, &resp)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.OK)
	assert.Equal(t, "risk-governor", resp.Node)
	assert.Equal(t, "ok", resp.Database.Status)
	assert.NotEmpty(t, resp.Database.SchemaVersion)
	assert.Equal(t, SystemHealth{CPUPercent: 12.5, MemoryPercent: 40}, resp.System)
}

func TestHealth_DatabaseDown(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.container.DB.Close())

	var resp HealthResponse
	status := ts.do(t, http.MethodGet, "/health", nil, &resp)

	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.False(t, resp.OK)
	assert.Equal(t, "error", resp.Database.Status)
}

func TestSkills(t *testing.T) {
	ts := newTestServer(t)

	var resp SkillsResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/skills", nil, &resp))

	assert.Equal(t, "risk-governor", resp.Node)
	assert.Len(t, resp.Reasoners, 5)
	assert.Len(t, resp.Skills, 8)
	assert.Contains(t, resp.Reasoners, "risk-governor.reasoners.risk_governor")
	assert.Contains(t, resp.Skills, "risk-governor.skills.persist_decision")
	assert.IsIncreasing(t, resp.Skills)
}

func TestGovernorFlow(t *testing.T) {
	ts := newTestServer(t)

	var created struct {
		CaseID    string `json:"case_id"`
		PersonaID string `json:"persona_id"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/cases", map[string]any{
		"asset":   "SPY",
		"persona": map[string]any{"persona_id": "p1"},
	}, &created))
	require.NotEmpty(t, created.CaseID)
	assert.Equal(t, "p1", created.PersonaID)

	var run domain.RunDecision
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/events/market", map[string]any{
		"case_id": created.CaseID,
		"event":   map[string]any{"asset": "SPY", "event_type": "heartbeat"},
	}, &run))
	assert.Equal(t, domain.RegimeTrend, run.Regime.Regime)
	assert.Len(t, run.Guard.Strategies, 3)

	var latest domain.ExecutionGuard
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/decisions/latest?asset=SPY", nil, &latest))
	assert.Equal(t, run.Guard.Strategies, latest.Strategies)

	var report domain.CaseReport
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/cases/"+created.CaseID, nil, &report))
	require.Len(t, report.Runs, 1)
	assert.Equal(t, run.AuditID, report.Runs[0].AuditID)

	var override struct {
		OK       bool   `json:"ok"`
		VectorID string `json:"vector_id"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/overrides", map[string]any{
		"case_id":       created.CaseID,
		"asset":         "SPY",
		"persona_id":    "p1",
		"override_type": "set_cap",
		"strategy_id":   "fire",
		"value":         0.2,
	}, &override))
	assert.True(t, override.OK)
	assert.True(t, strings.HasPrefix(override.VectorID, "vec_"))

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/decisions/latest?asset=QQQ", nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/events/market", map[string]any{
		"case_id": "case_missing",
		"event":   map[string]any{"asset": "SPY", "event_type": "heartbeat"},
	}, nil))
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)

	var created struct {
		CaseID string `json:"case_id"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/cases", map[string]any{"asset": "SPY"}, &created))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/events/market", map[string]any{
		"case_id": created.CaseID,
		"event":   map[string]any{"asset": "SPY", "event_type": "crash_signal", "severity": 0.9},
	}, nil))

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `risk_governor_transactions_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "risk_governor_escalations_total")
	assert.Len(t, ts.notifier.Sent(), 1)
}

func TestJobs(t *testing.T) {
	ts := newTestServer(t)

	var list map[string][]string
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/jobs/", nil, &list))
	assert.Equal(t, []string{"check_core_databases", "check_wal_checkpoints", "maintenance"}, list["jobs"])

	var ran map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/jobs/maintenance", nil, &ran))
	assert.Equal(t, "completed", ran["status"])

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/jobs/backup", nil, nil))
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/stream?types=case_created", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() map[string]any {
		for lines.Scan() {
			line := lines.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var payload map[string]any
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload))
			return payload
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return nil
	}

	assert.Equal(t, "connected", next()["type"])
	require.Eventually(t, func() bool {
		return ts.container.Bus.SubscriberCount(events.CaseCreated) == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/cases", map[string]any{"asset": "SPY"}, nil))

	event := next()
	assert.Equal(t, string(events.CaseCreated), event["type"])
	assert.Equal(t, "cases", event["module"])
	data, ok := event["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SPY", data["asset"])
}

func TestEventsStream_UnknownType(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/events/stream?types=price_updated")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
