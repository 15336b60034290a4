package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskgovernor/internal/api"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/memory"
	"github.com/aristath/riskgovernor/internal/modules/overrides"
	testingpkg "github.com/aristath/riskgovernor/internal/testing"
)

func TestHandleRecordOverride(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "override_handlers")
	defer cleanup()

	r := chi.NewRouter()
	svc := overrides.NewService(db.Conn(), events.NewBus(zerolog.Nop()), zerolog.Nop())
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(r)

	body := `{"case_id":"case_1","asset":"SPY","persona_id":"p1","override_type":"set_cap","strategy_id":"fire","value":0.1}`
	req := httptest.NewRequest(http.MethodPost, "/overrides", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp OverrideResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.VectorID)

	var last overrides.LastOverride
	found, err := memory.NewStore(db.Conn(), zerolog.Nop()).Get(context.Background(), "persona:p1", "last_override", &last)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "user_override", last.Reason)
	assert.False(t, last.At.IsZero())
}

func TestHandleRecordOverride_Validation(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "override_handlers")
	defer cleanup()

	r := chi.NewRouter()
	svc := overrides.NewService(db.Conn(), events.NewBus(zerolog.Nop()), zerolog.Nop())
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(r)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad type", `{"case_id":"c","asset":"SPY","persona_id":"p1","override_type":"nuke","strategy_id":"fire"}`, "override_type"},
		{"bad strategy", `{"case_id":"c","asset":"SPY","persona_id":"p1","override_type":"set_cap","strategy_id":"earth"}`, "strategy_id"},
		{"value too high", `{"case_id":"c","asset":"SPY","persona_id":"p1","override_type":"set_cap","strategy_id":"fire","value":1.5}`, "value"},
		{"missing persona", `{"case_id":"c","asset":"SPY","override_type":"set_cap","strategy_id":"fire"}`, "persona_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/overrides", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Errors)
			assert.Equal(t, tt.field, resp.Errors[0].Field)
		})
	}
}
