package handler

import (
	"io"
	"net/http"

	"github.com/freeeve/conquest/internal/auth"
	"github.com/freeeve/conquest/internal/logger"
	"github.com/freeeve/conquest/internal/service"
	"github.com/freeeve/conquest/pkg/conquest"
)

// ActionHandler serves a started game's state and accepts actions over HTTP.
type ActionHandler struct {
	gameSvc *service.GameService
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(gameSvc *service.GameService) *ActionHandler {
	return &ActionHandler{gameSvc: gameSvc}
}

// GetState handles GET /api/v1/games/{id}/state
func (h *ActionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	gs, err := h.gameSvc.State(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// SubmitAction handles POST /api/v1/games/{id}/actions. Accepted and
// rejected actions both answer 200 with {ok, kind, reason, state}; only
// transport failures use error statuses.
func (h *ActionHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	act, err := conquest.DecodeAction(body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "kind": conquest.RejectStructural, "reason": err.Error()})
		return
	}

	out, err := h.gameSvc.SubmitAction(r.Context(), gameID, userID, act)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !out.OK {
		reqLog := logger.ForRequest(r.Context())
		reqLog.Info().Str("gameId", gameID).Str("playerId", userID).
			Str("action", string(act.Type)).Str("kind", string(out.Kind)).Str("reason", out.Reason).Msg("Action rejected")
	}
	writeJSON(w, http.StatusOK, out)
}

// ListActions handles GET /api/v1/games/{id}/actions?after=&limit=
func (h *ActionHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.gameSvc.ActionLog(r.Context(), r.PathValue("id"), queryInt(r, "after", 0), int(queryInt(r, "limit", 0)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if recs == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
