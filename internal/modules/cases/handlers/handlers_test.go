package handlers

import (
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
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/modules/cases"
	testingpkg "github.com/aristath/riskgovernor/internal/testing"
)

func setupRouter(t *testing.T) chi.Router {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "case_handlers")
	t.Cleanup(cleanup)

	svc := cases.NewService(db.Conn(), events.NewBus(zerolog.Nop()), zerolog.Nop())
	r := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleCreateCase_AppliesPersonaDefaults(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, http.MethodPost, "/cases", `{"asset":"SPY","persona":{}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CreateCaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SPY", resp.Asset)
	assert.Equal(t, "default", resp.PersonaID)
	assert.NotEmpty(t, resp.CaseID)

	w = doRequest(router, http.MethodGet, "/cases/"+resp.CaseID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var report domain.CaseReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, domain.LevelMedium, report.Inputs.Persona.RiskTolerance)
	assert.Equal(t, domain.HorizonLong, report.Inputs.Persona.TimeHorizon)
	assert.Empty(t, report.Runs)
}

func TestHandleCreateCase_Validation(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing asset", `{"persona":{"persona_id":"p1"}}`, "asset"},
		{"bad tolerance", `{"asset":"SPY","persona":{"risk_tolerance":"extreme"}}`, "persona.risk_tolerance"},
		{"bad horizon", `{"asset":"SPY","persona":{"time_horizon":"forever"}}`, "persona.time_horizon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/cases", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Errors)
			assert.Equal(t, tt.field, resp.Errors[0].Field)
		})
	}

	w := doRequest(router, http.MethodPost, "/cases", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetCase_NotFound(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/cases/case_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
