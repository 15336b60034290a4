package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
)

type stubGuards struct {
	guards map[string]*domain.ExecutionGuard
	err    error
}

func (s *stubGuards) GetLatestGuard(_ context.Context, asset string) (*domain.ExecutionGuard, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.guards[asset], nil
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHandleGetLatest(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	guards := &stubGuards{guards: map[string]*domain.ExecutionGuard{
		"SPY": {Asset: "SPY", AsOf: asOf, Strategies: map[domain.StrategyID]domain.GuardEntry{}, Escalations: []domain.Escalation{}},
	}}
	router := newRouter(NewHandler(guards, events.NewBus(zerolog.Nop()), nil, zerolog.Nop()))

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"existing asset", "/decisions/latest?asset=SPY", http.StatusOK},
		{"unknown asset", "/decisions/latest?asset=QQQ", http.StatusNotFound},
		{"missing asset", "/decisions/latest", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/decisions/latest?asset=SPY", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var guard domain.ExecutionGuard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &guard))
	assert.Equal(t, "SPY", guard.Asset)
	assert.True(t, guard.AsOf.Equal(asOf))
}

func TestHandleGetLatest_StorageErrorIsHidden(t *testing.T) {
	guards := &stubGuards{err: errors.New("disk on fire")}
	router := newRouter(NewHandler(guards, events.NewBus(zerolog.Nop()), nil, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/decisions/latest?asset=SPY", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestHandleStream_ForwardsMatchingGuards(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	srv := httptest.NewServer(newRouter(NewHandler(&stubGuards{}, bus, nil, zerolog.Nop())))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/decisions/stream?asset=SPY"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.GuardPublished) == 1
	}, 2*time.Second, 10*time.Millisecond)

	bus.Publish("engine", &events.GuardPublishedData{
		CaseID: "case_qqq", DecisionID: "dec_1", AuditID: "audit_1",
		Guard: domain.ExecutionGuard{Asset: "QQQ"},
	})
	published := domain.ExecutionGuard{
		Asset: "SPY",
		AsOf:  time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
		Strategies: map[domain.StrategyID]domain.GuardEntry{
			domain.StrategyFire: {StrategyID: domain.StrategyFire, Status: domain.StatusEnabled, AllowedActions: domain.AllowedActions},
		},
		Escalations: []domain.Escalation{},
	}
	bus.Publish("engine", &events.GuardPublishedData{
		CaseID: "case_spy", DecisionID: "dec_2", AuditID: "audit_2",
		Guard: published,
	})

	var raw map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &raw))
	assert.NotContains(t, raw, "type", "messages are bare guards, not event envelopes")
	assert.Contains(t, raw, "strategies")

	encoded, err := json.Marshal(raw)
	require.NoError(t, err)
	var guard domain.ExecutionGuard
	require.NoError(t, json.Unmarshal(encoded, &guard))
	assert.Equal(t, "SPY", guard.Asset)
	assert.True(t, published.AsOf.Equal(guard.AsOf))
	assert.Equal(t, published.Strategies, guard.Strategies)
}

func TestHandleStream_UnsubscribesOnClose(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	srv := httptest.NewServer(newRouter(NewHandler(&stubGuards{}, bus, nil, zerolog.Nop())))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/decisions/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.GuardPublished) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool {
		return bus.SubscriberCount(events.GuardPublished) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
