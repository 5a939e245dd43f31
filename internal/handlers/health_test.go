package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/internal/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name             string
		storeErr         error
		providerErr      error
		expectedStatus   int
		expectedHealth   string
		expectedStorage  string
		expectedProvider string
	}{
		{
			name:             "all healthy",
			expectedStatus:   http.StatusOK,
			expectedHealth:   "healthy",
			expectedStorage:  "healthy",
			expectedProvider: "healthy",
		},
		{
			name:             "unhealthy storage",
			storeErr:         errors.New("connection failed"),
			expectedStatus:   http.StatusServiceUnavailable,
			expectedHealth:   "degraded",
			expectedStorage:  "unhealthy",
			expectedProvider: "healthy",
		},
		{
			name:             "unhealthy provider",
			providerErr:      services.NewStatusError(503, "down"),
			expectedStatus:   http.StatusServiceUnavailable,
			expectedHealth:   "degraded",
			expectedStorage:  "healthy",
			expectedProvider: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMockStore()
			store.SetPingError(tt.storeErr)
			provider := services.NewMockProvider()
			provider.PingFunc = func(ctx context.Context) error { return tt.providerErr }

			handler := NewHealthHandler(store, provider, testLogger())
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response HealthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedHealth, response.Status)
			assert.Equal(t, "npc-engine", response.Service)
			assert.Equal(t, tt.expectedStorage, response.Components["storage"])
			assert.Equal(t, tt.expectedProvider, response.Components["provider"])
		})
	}
}

func TestHealthHandler_SkipsNilComponents(t *testing.T) {
	handler := NewHealthHandler(storage.NewMockStore(), nil, testLogger())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, map[string]string{"storage": "healthy"}, response.Components)
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	handler := NewHealthHandler(nil, nil, testLogger())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, http.MethodGet, rr.Header().Get("Allow"))
}
