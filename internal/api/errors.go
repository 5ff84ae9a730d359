package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/telemetry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleServiceError maps an application error to its HTTP outcome.
// Internal failures are logged and reported without detail.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_already_booked", apperr.Message(err))
		return
	case errors.Is(err, appointment.ErrSlotBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "slot_busy", apperr.Message(err))
		return
	}

	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		writeError(w, http.StatusBadRequest, "invalid_input", apperr.Message(err))
	case apperr.KindInvalidState:
		writeError(w, http.StatusBadRequest, "invalid_state", apperr.Message(err))
	case apperr.KindUnauthorized:
		writeError(w, http.StatusUnauthorized, "unauthorized", apperr.Message(err))
	case apperr.KindForbidden:
		writeError(w, http.StatusForbidden, "forbidden", apperr.Message(err))
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", apperr.Message(err))
	case apperr.KindConflict:
		writeError(w, http.StatusConflict, "conflict", apperr.Message(err))
	case apperr.KindUnavailable:
		writeError(w, http.StatusServiceUnavailable, "unavailable", apperr.Message(err))
	default:
		telemetry.LoggerFromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}
