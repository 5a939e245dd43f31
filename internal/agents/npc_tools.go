package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jwebster45206/npc-engine/internal/lore"
	"github.com/jwebster45206/npc-engine/pkg/npc"
	"github.com/jwebster45206/npc-engine/pkg/world"
)

const (
	ToolPerception  = "perception_tool"
	ToolPersonality = "personality_tool"
	ToolMemory      = "memory_tool"
	ToolLore        = "rag_tool"
	ToolEnvironment = "get_environment_data"
)

// WorldReader is the read side of the world store.
type WorldReader interface {
	Objects(ctx context.Context) ([]world.Object, error)
}

// NewPerceptionTool lets the responder note an event it perceives.
func NewPerceptionTool(p npc.Persona) Tool {
	return &FuncTool{
		ToolName:        ToolPerception,
		ToolDescription: "NPC perceives events in the game world",
		Schema:          stringParam("event", "Event happening in the world", true),
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("%s perceives: %s", p.Name, stringArg(args, "event")), nil
		},
	}
}

// NewPersonalityTool returns the persona's traits.
func NewPersonalityTool(p npc.Persona) Tool {
	return &FuncTool{
		ToolName:        ToolPersonality,
		ToolDescription: "Return NPC personality traits",
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("Name: %s. Background: %s. Behavior: %s.", p.Name, p.Background, p.Behavior), nil
		},
	}
}

// NewMemoryTool recalls from short-term memory. An empty query returns the
// last three entries.
func NewMemoryTool(p npc.Persona, mem *ShortTermMemory) Tool {
	return &FuncTool{
		ToolName:        ToolMemory,
		ToolDescription: "Recall past NPC memory or events",
		Schema:          stringParam("query", "The query to recall from NPC memory", false),
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			if mem.Len() == 0 {
				return fmt.Sprintf("As %s, I do not recall anything.", p.Name), nil
			}
			query := strings.TrimSpace(stringArg(args, "query"))
			if query == "" {
				recent := mem.Recent(3)
				lines := make([]string, len(recent))
				for i, e := range recent {
					lines[i] = e.Content
				}
				return strings.Join(lines, "\n"), nil
			}
			if e, ok := mem.Search(query); ok {
				return fmt.Sprintf("As %s, I recall: '%s'.", p.Name, e.Content), nil
			}
			return fmt.Sprintf("As %s, I do not recall anything about '%s'.", p.Name, query), nil
		},
	}
}

// NewLoreTool queries the persona's lore memory. A nil memory always
// reports nothing found.
func NewLoreTool(mem lore.Memory) Tool {
	return &FuncTool{
		ToolName:        ToolLore,
		ToolDescription: "Retrieve facts from story knowledge base",
		Schema:          stringParam("query", "The query to retrieve from story knowledge base", true),
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			if mem == nil {
				return msgNoLore, nil
			}
			results, err := mem.Query(ctx, stringArg(args, "query"))
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return msgNoLore, nil
			}
			lines := make([]string, len(results))
			for i, r := range results {
				lines[i] = r.Content
			}
			return "Relevant story info:\n" + strings.Join(lines, "\n"), nil
		},
	}
}

const msgNoLore = "No relevant story knowledge found."

// NewEnvironmentTool reports world data: live object status from the world
// store plus static declarations from the script at scriptPath, if any.
func NewEnvironmentTool(store WorldReader, scriptPath string) Tool {
	return &FuncTool{
		ToolName:        ToolEnvironment,
		ToolDescription: "Analyzes a C# script file to find and extract raw game world data as a JSON object.",
		Schema:          stringParam("llm_provided_path", "The path to the C# script. This is ignored; the correct path is pre-configured.", false),
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return EnvironmentData(ctx, store, scriptPath), nil
		},
	}
}

// EnvironmentData renders the world data report. Read failures are
// reported in the returned text.
func EnvironmentData(ctx context.Context, store WorldReader, scriptPath string) string {
	objects, err := store.Objects(ctx)
	if err != nil {
		return fmt.Sprintf("Critical Error: Could not read world_state.json: %v", err)
	}
	if objects == nil {
		objects = []world.Object{}
	}

	script := world.ExtractScript("")
	if scriptPath != "" {
		src, err := os.ReadFile(scriptPath)
		switch {
		case err == nil:
			script = world.ExtractScript(string(src))
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Sprintf("Error analyzing C# file: %v", err)
		}
	}

	report := struct {
		GameState  map[string]any               `json:"gameState"`
		Layout     map[string]map[string]string `json:"storeLayout"`
		Objects    []world.Object               `json:"objects"`
		Characters []map[string]string          `json:"characters"`
	}{script.GameState, script.Layout, objects, script.Characters}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error analyzing C# file: %v", err)
	}
	return string(data)
}
