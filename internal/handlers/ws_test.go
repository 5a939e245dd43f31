package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/jwebster45206/npc-engine/internal/session"
	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

func dialSession(t *testing.T, env *testEnv, id string) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("/ws/", NewWSHandler(env.manager, testLogger()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + id
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWSHandler_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	conn := dialSession(t, env, "does-not-exist")

	var text string
	require.NoError(t, websocket.Message.Receive(conn, &text))
	assert.Equal(t, MsgInvalidSession, text)

	err := websocket.Message.Receive(conn, &text)
	assert.Error(t, err, "server closes after the notice")
}

func TestWSHandler_TurnAndTerminate(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.manager.Create(context.Background(), session.OpenRequest{Persona: npc.Persona{Name: "Martha"}})
	require.NoError(t, err)
	env.provider.QueueText(approvedReply)

	conn := dialSession(t, env, s.ID())
	require.NoError(t, websocket.Message.Send(conn, "Hello!"))

	var dialogue, action chat.Notification
	require.NoError(t, websocket.JSON.Receive(conn, &dialogue))
	require.NoError(t, websocket.JSON.Receive(conn, &action))
	assert.Equal(t, chat.DialogueNotification("Welcome in!", "wave"), dialogue)
	assert.Equal(t, chat.ActionNotification("MOVE", "counter", "wave"), action)

	require.NoError(t, websocket.Message.Send(conn, chat.TerminateMessage))
	assert.Eventually(t, func() bool { return env.manager.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, session.StateClosed, s.State())
	assert.Equal(t, 1, env.store.SaveCalls())

	rec, err := env.store.LoadRecord(context.Background(), "martha")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, npc.Mood("happy"), rec.Mood)
}

func TestWSHandler_DisconnectClosesSession(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.manager.Create(context.Background(), session.OpenRequest{Persona: npc.Persona{Name: "Tom"}})
	require.NoError(t, err)

	conn := dialSession(t, env, s.ID())
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return s.State() == session.StateClosed }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, env.manager.Len())
}

func TestWSHandler_OversizedMessageGetsError(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.manager.Create(context.Background(), session.OpenRequest{Persona: npc.Persona{Name: "Tom"}})
	require.NoError(t, err)

	conn := dialSession(t, env, s.ID())
	require.NoError(t, websocket.Message.Send(conn, strings.Repeat("a", chat.MaxMessageLength+1)))

	var note chat.Notification
	require.NoError(t, websocket.JSON.Receive(conn, &note))
	assert.Equal(t, chat.NotificationError, note.Type)
	assert.Empty(t, env.provider.Calls(), "invalid messages never reach the team")
}
