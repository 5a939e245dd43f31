package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// Tool is a capability a role may invoke during its turn.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a JSON schema object describing the arguments
	Parameters() json.RawMessage
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// FuncTool adapts a function to Tool.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	Schema          json.RawMessage
	Fn              func(ctx context.Context, args map[string]any) (string, error)
}

var _ Tool = (*FuncTool)(nil)

func (f *FuncTool) Name() string        { return f.ToolName }
func (f *FuncTool) Description() string { return f.ToolDescription }

func (f *FuncTool) Parameters() json.RawMessage {
	if len(f.Schema) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return f.Schema
}

func (f *FuncTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	parsed := map[string]any{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", f.ToolName, err)
		}
	}
	return f.Fn(ctx, parsed)
}

// Definition describes t to a completion provider.
func Definition(t Tool) chat.ToolDefinition {
	return chat.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// stringParam builds a schema with a single string argument.
func stringParam(name, description string, required bool) json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{"type": "string", "description": description},
		},
	}
	if required {
		schema["required"] = []string{name}
	}
	data, _ := json.Marshal(schema)
	return data
}

func stringArg(args map[string]any, name string) string {
	v, ok := args[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
