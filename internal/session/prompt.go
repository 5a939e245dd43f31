package session

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/npc-engine/internal/agents"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

const (
	// NoSceneDescription stands in when no scene image was described.
	NoSceneDescription = "The user did not provide a visual description of the scene."

	sceneRequest = "Describe this scene for me."
)

// taskPrompt wraps the user's message with the NPC's current context and
// the rules for the final answer.
func taskPrompt(message string, st *npc.State, scene, scriptPath string) string {
	if scriptPath == "" {
		scriptPath = "not provided"
	}
	name := st.Persona.Name
	if name == "" {
		name = "The NPC"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The user's message is: '%s'.\n\n", message)

	b.WriteString("--- CONTEXT ---\n")
	fmt.Fprintf(&b, "Your Current Mood: %s\n", st.Mood)
	fmt.Fprintf(&b, "Your Inventory: You are currently holding %s.\n", st.DescribeInventory())
	fmt.Fprintf(&b, "Visual Description of the Scene: %s\n", scene)
	fmt.Fprintf(&b, "C# File Path: %s\n\n", scriptPath)

	b.WriteString("--- JSON OUTPUT RULE ---\n")
	fmt.Fprintf(&b, "Your final response MUST begin with a single valid JSON object. In the 'mood' field of this JSON, "+
		"you MUST use exactly one of the following string values: %s.\n\n", npc.MoodList())

	b.WriteString("--- DECISION-MAKING FRAMEWORK ---\n")
	b.WriteString("1. **Analyze User Intent:** First, classify the user's message into one of three categories:\n")
	b.WriteString("   - **Category A (Factual Inquiry):** The user is asking a question that requires you to look up " +
		"**new information that you do not already have in your context**.\n")
	b.WriteString("   - **Category B (Direct Command):** The user is telling you to perform a physical action in the world " +
		"(e.g., 'Pick up the wrapper', 'Open the door').\n")
	b.WriteString("   - **Category C (Social Interaction):** The user is engaging in simple conversation (e.g., 'Hello', 'How are you?').\n\n")
	b.WriteString("2. **Execute the Plan:** Based on the category, follow this logic:\n")
	fmt.Fprintf(&b, "   - **If Category A:** You MUST use a specialist agent (`%s` or `%s`) to gather the new facts. Do not answer directly.\n",
		agents.RoleWorldData, agents.RoleLore)
	b.WriteString("   - **If the user's question can be answered using information already in your context " +
		"(from a previous tool use), treat it as Category C.**\n")
	fmt.Fprintf(&b, "   - **If Category B or C:** No specialist data-gathering tools are needed. The main NPC, `%s`, "+
		"should respond directly by generating the required JSON.\n", name)
	return b.String()
}
