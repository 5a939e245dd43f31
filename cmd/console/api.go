package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// apiError turns a non-success response body into an error.
func apiError(action string, status int, body []byte) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("failed to %s: %s", action, errorResp.Error)
}

func listAvatars(client *http.Client, baseURL string) ([]npc.Persona, error) {
	resp, err := client.Get(baseURL + "/v1/avatars")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("list avatars", resp.StatusCode, body)
	}

	var avatars []npc.Persona
	if err := json.Unmarshal(body, &avatars); err != nil {
		return nil, fmt.Errorf("failed to parse avatars response: %w", err)
	}
	return avatars, nil
}

// InitializeRequest matches the API request structure
type InitializeRequest struct {
	Name           string `json:"name"`
	Background     string `json:"background"`
	Behavior       string `json:"behavior"`
	StoryFilePath  string `json:"story_file_path,omitempty"`
	CSharpFilePath string `json:"csharp_file_path,omitempty"`
}

type InitializeResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func initializeNPC(client *http.Client, baseURL string, req InitializeRequest) (*InitializeResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(baseURL+"/v1/initialize", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("initialize character", resp.StatusCode, body)
	}

	var initResp InitializeResponse
	if err := json.Unmarshal(body, &initResp); err != nil {
		return nil, fmt.Errorf("failed to parse initialize response: %w", err)
	}
	return &initResp, nil
}

// websocketURL maps the API base URL onto the session socket URL.
func websocketURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported API scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(sessionID)
	return u.String(), nil
}

func dialSession(baseURL, sessionID string) (*websocket.Conn, error) {
	wsURL, err := websocketURL(baseURL, sessionID)
	if err != nil {
		return nil, err
	}
	conn, err := websocket.Dial(wsURL, "", baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open session socket: %w", err)
	}
	return conn, nil
}

// parseFrame decodes a server frame. Frames that are not notifications,
// such as the invalid session notice, become error notifications.
func parseFrame(frame string) chat.Notification {
	var n chat.Notification
	if err := json.Unmarshal([]byte(frame), &n); err != nil || n.Type == "" {
		return chat.ErrorNotification(strings.TrimSpace(frame))
	}
	return n
}
