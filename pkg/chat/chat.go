package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxMessageLength caps one inbound user message, in bytes.
const MaxMessageLength = 4000

// TerminateMessage is the reserved inbound text that ends a session.
const TerminateMessage = "_TERMINATE_"

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Specialist or NPC
	ChatRoleSystem = "system"    // Role instructions
	ChatRoleTool   = "tool"      // Tool result
)

// ChatRequest is one message typed by the user over the socket.
type ChatRequest struct {
	Message string `json:"message"`
}

func (cr *ChatRequest) Validate() error {
	if strings.TrimSpace(cr.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if len(cr.Message) > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d bytes", MaxMessageLength)
	}
	return nil
}

// ChatMessage is a single entry of the conversation sent to a completion
// provider. Name carries the speaker when several specialists share a
// thread. Images holds local file paths.
type ChatMessage struct {
	Role       string     `json:"role"`
	Name       string     `json:"name,omitempty"`
	Content    string     `json:"content"`
	Images     []string   `json:"images,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a provider's request to run a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolDefinition advertises a tool to the provider. Parameters is a JSON
// schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Completion is one provider generation: text, tool calls, or both.
type Completion struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func (c *Completion) HasToolCalls() bool {
	return c != nil && len(c.ToolCalls) > 0
}

const (
	NotificationDialogue = "dialogue"
	NotificationAction   = "action"
	NotificationError    = "error"
)

// Notification is a JSON object pushed to the client.
type Notification struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Command   string `json:"command,omitempty"`
	Target    string `json:"target,omitempty"`
	Animation string `json:"animation,omitempty"`
}

func DialogueNotification(message, animation string) Notification {
	return Notification{Type: NotificationDialogue, Message: message, Animation: animation}
}

func ActionNotification(command, target, animation string) Notification {
	return Notification{Type: NotificationAction, Command: command, Target: target, Animation: animation}
}

func ErrorNotification(message string) Notification {
	return Notification{Type: NotificationError, Message: message}
}
