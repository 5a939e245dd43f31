package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/npc-engine/internal/session"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

type InitializeRequest struct {
	Name           string `json:"name"`
	Background     string `json:"background"`
	Behavior       string `json:"behavior"`
	StoryFilePath  string `json:"story_file_path,omitempty"`
	CSharpFilePath string `json:"csharp_file_path,omitempty"`
	ImageFilePath  string `json:"image_file_path,omitempty"`
}

type InitializeResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// InitializeHandler creates or restores an NPC session.
// POST /v1/initialize
type InitializeHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

func NewInitializeHandler(sessions *session.Manager, logger *slog.Logger) *InitializeHandler {
	return &InitializeHandler{sessions: sessions, logger: logger}
}

func (h *InitializeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if methodNotAllowed(w, r, h.logger, http.MethodPost) {
		return
	}

	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid initialize body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'name', 'background' and 'behavior'.")
		return
	}
	persona := npc.Persona{
		Name:       strings.TrimSpace(req.Name),
		Background: req.Background,
		Behavior:   req.Behavior,
	}
	if err := persona.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.sessions.Create(r.Context(), session.OpenRequest{
		Persona:    persona,
		StoryPath:  req.StoryFilePath,
		ScriptPath: req.CSharpFilePath,
		ImagePath:  req.ImageFilePath,
	})
	if err != nil {
		if errors.Is(err, session.ErrProviderAuth) {
			h.logger.Warn("Provider rejected credentials", "error", err)
			writeError(w, h.logger, http.StatusUnauthorized, "Authentication failed. Check your API key.")
			return
		}
		h.logger.Error("Failed to initialize character", "name", persona.Name, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, fmt.Sprintf("Failed to initialize character: %v", err))
		return
	}

	h.logger.Info("Character initialized",
		"name", persona.Name,
		"session_id", s.ID(),
		"restored", s.Restored())
	writeJSON(w, h.logger, http.StatusOK, InitializeResponse{
		Message:   fmt.Sprintf("Character '%s' initialized.", persona.Name),
		SessionID: s.ID(),
	})
}
