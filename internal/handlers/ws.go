package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/jwebster45206/npc-engine/internal/session"
	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// MsgInvalidSession is sent, as plain text, before closing a socket that
// names an unknown session.
const MsgInvalidSession = "Error: Invalid session ID. Please initialize a character first."

// WSHandler drives one session over a websocket: text frames in, JSON
// notifications out. The session is closed when the client sends the
// terminate message or goes away.
// GET /ws/{session_id}
type WSHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

func NewWSHandler(sessions *session.Manager, logger *slog.Logger) *WSHandler {
	return &WSHandler{sessions: sessions, logger: logger}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if methodNotAllowed(w, r, h.logger, http.MethodGet) {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/"), "/")
	websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn, id)
	}).ServeHTTP(w, r)
}

func (h *WSHandler) serve(conn *websocket.Conn, id string) {
	defer func() {
		_ = conn.Close()
	}()

	s, ok := h.sessions.Get(id)
	if !ok {
		h.logger.Warn("Websocket for unknown session", "session_id", id)
		if err := websocket.Message.Send(conn, MsgInvalidSession); err != nil {
			h.logger.Debug("Failed to send invalid session notice", "error", err)
		}
		return
	}

	ctx := conn.Request().Context()
	log := h.logger.With("session_id", id)
	defer func() {
		if err := h.sessions.Close(context.WithoutCancel(ctx), id); err != nil {
			log.Warn("Session close reported an error", "error", err)
		}
		log.Info("Connection closed")
	}()

	s.Start(ctx)
	log.Info("Connection open")

	for {
		var message string
		if err := websocket.Message.Receive(conn, &message); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("Websocket receive failed", "error", err)
			}
			return
		}
		if message == chat.TerminateMessage {
			return
		}

		req := chat.ChatRequest{Message: message}
		if err := req.Validate(); err != nil {
			if err := websocket.JSON.Send(conn, chat.ErrorNotification(err.Error())); err != nil {
				return
			}
			continue
		}

		notes, err := s.HandleMessage(ctx, message)
		if err != nil {
			log.Warn("Message rejected", "error", err)
			return
		}
		for _, n := range notes {
			if err := websocket.JSON.Send(conn, n); err != nil {
				log.Warn("Websocket send failed", "error", err)
				return
			}
		}
	}
}
