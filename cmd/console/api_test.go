package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{name: "http", baseURL: "http://localhost:8080", want: "ws://localhost:8080/ws/abc"},
		{name: "https with path", baseURL: "https://npc.example.com/api/", want: "wss://npc.example.com/api/ws/abc"},
		{name: "unsupported scheme", baseURL: "ftp://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := websocketURL(tt.baseURL, "abc")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrame(t *testing.T) {
	n := parseFrame(`{"type":"action","command":"MOVE","target":"counter","animation":"wave"}`)
	assert.Equal(t, chat.ActionNotification("MOVE", "counter", "wave"), n)

	n = parseFrame("Error: Invalid session ID. Please initialize a character first.")
	assert.Equal(t, chat.NotificationError, n.Type)
	assert.Contains(t, n.Message, "Invalid session ID")
}

func TestListAvatars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/avatars", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]npc.Persona{{Name: "Martha", Background: "Grocer", Behavior: "Warm"}})
	}))
	defer server.Close()

	avatars, err := listAvatars(server.Client(), server.URL)
	require.NoError(t, err)
	require.Len(t, avatars, 1)
	assert.Equal(t, "Martha", avatars[0].Name)
}

func TestInitializeNPC_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Authentication failed. Check your API key."})
	}))
	defer server.Close()

	_, err := initializeNPC(server.Client(), server.URL, InitializeRequest{Name: "Martha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestDialSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/ws/", websocket.Handler(func(conn *websocket.Conn) {
		var msg string
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return
		}
		_ = websocket.JSON.Send(conn, chat.DialogueNotification("You said "+msg, "talk"))
	}))
	server := httptest.NewServer(mux)
	defer server.Close()

	conn, err := dialSession(server.URL, "session-1")
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	require.Nil(t, sendMessage(conn, "hello")())
	msg := waitForNotification(conn)()
	got, ok := msg.(notificationMsg)
	require.True(t, ok)
	assert.Equal(t, "You said hello", got.note.Message)

	_, ok = waitForNotification(conn)().(disconnectedMsg)
	assert.True(t, ok)
}
