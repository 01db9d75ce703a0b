package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/internal/service"
	"github.com/freeeve/conquest/internal/session"
)

const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrGameNotFound), errors.Is(err, session.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotCreator), errors.Is(err, service.ErrNotInGame):
		return http.StatusForbidden
	case errors.Is(err, service.ErrGameNotWaiting), errors.Is(err, service.ErrGameNotActive),
		errors.Is(err, service.ErrGameFull), errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrNotEnough), errors.Is(err, service.ErrInvalidStrategy):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads and decodes a JSON request body of bounded size.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

// queryInt returns an integer query parameter, or def when absent or malformed.
func queryInt(r *http.Request, name string, def int64) int64 {
	n, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return def
	}
	return n
}
