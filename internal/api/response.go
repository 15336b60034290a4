package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/domain"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error  string           `json:"error"`
	Errors ValidationErrors `json:"errors,omitempty"`
}

// WriteJSON writes data as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// StatusFor maps an error onto an HTTP status: not found is 404, bad input
// is 400, everything else is 500.
func StatusFor(err error) int {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with its mapped status. Server errors are logged and
// their details withheld from the client.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		resp.Error = "invalid request"
		resp.Errors = verrs
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		resp.Error = "internal error"
	}
	WriteJSON(w, status, resp)
}
