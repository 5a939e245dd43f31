package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// CompletionProvider generates the next message of a conversation. A
// completion may carry tool calls instead of, or alongside, text.
type CompletionProvider interface {
	// Generate returns one completion for messages, offering tools
	Generate(ctx context.Context, messages []chat.ChatMessage, tools []chat.ToolDefinition) (*chat.Completion, error)

	// Ping checks that the provider is reachable
	Ping(ctx context.Context) error

	// Close releases any held resources
	Close() error
}

// ProviderErrorKind classifies a provider failure.
type ProviderErrorKind string

const (
	ProviderErrorAuth      ProviderErrorKind = "auth"
	ProviderErrorTransient ProviderErrorKind = "transient"
	ProviderErrorUnknown   ProviderErrorKind = "unknown"
)

// ProviderError is returned by a CompletionProvider when generation fails.
// StatusCode is zero when no HTTP status was received.
type ProviderError struct {
	Kind       ProviderErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider error (%s)", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the player for this failure.
func (e *ProviderError) UserMessage() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Error: The AI service failed. (%d)", e.StatusCode)
	}
	return MsgProviderFailed
}

// MsgProviderFailed is shown when a failure has no status code.
const MsgProviderFailed = "Error: The AI service failed unexpectedly. Please try again."

// NewStatusError classifies an HTTP failure status.
func NewStatusError(status int, body string) *ProviderError {
	kind := ProviderErrorUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ProviderErrorAuth
	case status == http.StatusTooManyRequests || status >= 500:
		kind = ProviderErrorTransient
	}
	return &ProviderError{Kind: kind, StatusCode: status, Message: body}
}

// IsAuthError reports whether err is a provider authentication failure.
func IsAuthError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == ProviderErrorAuth
}

// UserMessageFor returns the player-facing text for any turn failure.
func UserMessageFor(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.UserMessage()
	}
	return MsgProviderFailed
}
