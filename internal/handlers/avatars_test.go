package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

func TestAvatarsHandler_ListsUniquePersonas(t *testing.T) {
	store := storage.NewMockStore()
	ctx := context.Background()
	for key, p := range map[string]npc.Persona{
		"zed":       {Name: "Zed", Background: "Night guard"},
		"martha":    {Name: "Martha", Background: "Grocer"},
		"martha_v2": {Name: " martha ", Background: "Duplicate"},
	} {
		require.NoError(t, store.SaveRecord(ctx, key, &npc.Record{Persona: p}))
	}

	rr := httptest.NewRecorder()
	NewAvatarsHandler(store, testLogger()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/avatars", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []npc.Persona
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Martha", got[0].Name)
	assert.Equal(t, "Grocer", got[0].Background)
	assert.Equal(t, "Zed", got[1].Name)
}

func TestAvatarsHandler_EmptyStoreIsEmptyList(t *testing.T) {
	rr := httptest.NewRecorder()
	NewAvatarsHandler(storage.NewMockStore(), testLogger()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/avatars", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestAvatarsHandler_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	NewAvatarsHandler(storage.NewMockStore(), testLogger()).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/avatars", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
