package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/npc-engine/internal/storage"
)

// AvatarsHandler lists the personas that have saved state.
// GET /v1/avatars
type AvatarsHandler struct {
	store  storage.SessionStore
	logger *slog.Logger
}

func NewAvatarsHandler(store storage.SessionStore, logger *slog.Logger) *AvatarsHandler {
	return &AvatarsHandler{store: store, logger: logger}
}

func (h *AvatarsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if methodNotAllowed(w, r, h.logger, http.MethodGet) {
		return
	}

	recs, err := h.store.ListRecords(r.Context())
	if err != nil {
		h.logger.Error("Failed to list saved NPCs", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Server error while fetching avatars.")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, storage.UniquePersonas(recs))
}
