package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

const (
	OpenRouterBaseURL       = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel  = "x-ai/grok-4-fast:free"
	DefaultOpenRouterTemp   = 0.7
	DefaultOpenRouterTokens = 1024
)

// OpenRouterService implements CompletionProvider against any
// OpenAI-compatible chat completions endpoint.
type OpenRouterService struct {
	apiKey     string
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ CompletionProvider = (*OpenRouterService)(nil)

// NewOpenRouterService creates a provider. An empty baseURL or modelName
// selects the OpenRouter defaults.
func NewOpenRouterService(apiKey, baseURL, modelName string, logger *slog.Logger) *OpenRouterService {
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}
	if modelName == "" {
		modelName = DefaultOpenRouterModel
	}
	return &OpenRouterService{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		modelName: modelName,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		logger: logger,
	}
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Tools       []openRouterTool    `json:"tools,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream"`
}

type openRouterMessage struct {
	Role       string               `json:"role"`
	Content    any                  `json:"content"`
	ToolCalls  []openRouterToolCall `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
}

type openRouterContentPart struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	ImageURL *openRouterImageURL `json:"image_url,omitempty"`
}

type openRouterImageURL struct {
	URL string `json:"url"`
}

type openRouterTool struct {
	Type     string             `json:"type"`
	Function openRouterFunction `json:"function"`
}

type openRouterFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type openRouterToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openRouterResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string               `json:"role"`
			Content   string               `json:"content"`
			ToolCalls []openRouterToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Generate sends one chat completion request.
func (o *OpenRouterService) Generate(ctx context.Context, messages []chat.ChatMessage, tools []chat.ToolDefinition) (*chat.Completion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}

	wireMessages := make([]openRouterMessage, 0, len(messages))
	for _, m := range messages {
		wm, err := toWireMessage(m)
		if err != nil {
			return nil, err
		}
		wireMessages = append(wireMessages, wm)
	}

	request := openRouterRequest{
		Model:       o.modelName,
		Messages:    wireMessages,
		Temperature: DefaultOpenRouterTemp,
		MaxTokens:   DefaultOpenRouterTokens,
	}
	for _, t := range tools {
		request.Tools = append(request.Tools, openRouterTool{
			Type:     "function",
			Function: openRouterFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Kind: ProviderErrorTransient, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Kind: ProviderErrorTransient, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		o.logger.Warn("Completion request failed", "status", resp.StatusCode, "model", o.modelName)
		return nil, NewStatusError(resp.StatusCode, string(body))
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(body, &orResp); err != nil {
		return nil, &ProviderError{Kind: ProviderErrorUnknown, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if orResp.Error != nil {
		return nil, &ProviderError{Kind: ProviderErrorUnknown, Message: orResp.Error.Message}
	}
	if len(orResp.Choices) == 0 {
		return nil, &ProviderError{Kind: ProviderErrorUnknown, Message: "no choices returned"}
	}

	msg := orResp.Choices[0].Message
	completion := &chat.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: rawArguments(tc.Function.Arguments),
		})
	}
	return completion, nil
}

// Ping lists models to confirm the endpoint answers.
func (o *OpenRouterService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Kind: ProviderErrorTransient, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return NewStatusError(resp.StatusCode, "")
	}
	return nil
}

// Close releases idle connections.
func (o *OpenRouterService) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

func toWireMessage(m chat.ChatMessage) (openRouterMessage, error) {
	wm := openRouterMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
	for _, tc := range m.ToolCalls {
		var call openRouterToolCall
		call.ID = tc.ID
		call.Type = "function"
		call.Function.Name = tc.Name
		call.Function.Arguments = string(tc.Arguments)
		if call.Function.Arguments == "" {
			call.Function.Arguments = "{}"
		}
		wm.ToolCalls = append(wm.ToolCalls, call)
	}
	if len(m.Images) == 0 {
		return wm, nil
	}

	parts := []openRouterContentPart{{Type: "text", Text: m.Content}}
	for _, path := range m.Images {
		url, err := imageDataURL(path)
		if err != nil {
			return wm, err
		}
		parts = append(parts, openRouterContentPart{Type: "image_url", ImageURL: &openRouterImageURL{URL: url}})
	}
	wm.Content = parts
	return wm, nil
}

func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// rawArguments keeps valid JSON arguments as-is and quotes anything else.
func rawArguments(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}
