package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/services/events"
	"github.com/jwebster45206/npc-engine/pkg/chat"
)

func setupEvents(t *testing.T) (*events.Broadcaster, *httptest.Server) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := events.NewBroadcaster(client, testLogger())
	mux := http.NewServeMux()
	mux.Handle("/v1/events/", NewEventsHandler(b, testLogger()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

// readEvent returns the next "event:" name and its data line.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventsHandler_StreamsSessionEvents(t *testing.T) {
	b, srv := setupEvents(t)
	id := uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	name, data := readEvent(t, r)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, id)

	require.NoError(t, b.PublishNotification(ctx, id, chat.DialogueNotification("Hello!", "wave")))
	name, data = readEvent(t, r)
	assert.Equal(t, string(events.EventTypeNotification), name)
	assert.Contains(t, data, `"message":"Hello!"`)

	require.NoError(t, b.PublishSessionClosed(ctx, id))
	name, _ = readEvent(t, r)
	assert.Equal(t, string(events.EventTypeSessionClosed), name)
}

func TestEventsHandler_BadRequests(t *testing.T) {
	_, srv := setupEvents(t)

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"invalid id", http.MethodGet, "/v1/events/not-a-uuid", http.StatusBadRequest},
		{"extra segment", http.MethodGet, "/v1/events/" + uuid.NewString() + "/more", http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/v1/events/" + uuid.NewString(), http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}
