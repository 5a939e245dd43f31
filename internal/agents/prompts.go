package agents

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/decision"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

func responderPrompt(p npc.Persona) string {
	return fmt.Sprintf(`You are %s, a character in a game world.
Background: %s
Behavior: %s

You speak directly to the user and never break character. Specialists may post facts
into the conversation before you speak; use them, and never invent facts about the
world or the story.

Your reply MUST begin with one JSON object with exactly these string fields:
  "thoughts":  your private reasoning
  "response":  what you say out loud
  "mood":      one of %s
  "action":    "" or one of MOVE:<place>, INTERACT:<thing>, PICKUP:<item>, UPDATE_STATUS:<object>, <status>
  "animation": a short animation tag such as talk_passionately or wave
After the JSON object, write %s.`, p.Name, p.Background, p.Behavior, npc.MoodList(), decision.ApproveToken)
}

func lorePrompt(p npc.Persona) string {
	return fmt.Sprintf(`You gather background story facts for %s. Always call the rag_tool with a short
query built from the user's question. Do not answer the user yourself.`, p.Name)
}

const worldDataPrompt = `You gather game world data. Always call the get_environment_data tool.
Do not answer the user yourself.`

const scenePrompt = `You describe images of the game world. Reply with a JSON object whose "response"
field holds a concise description of the scene: places, objects and people.`

const selectorPrompt = `You are in a role play game. The following roles are available:
%s.
Read the following conversation. Then select the next role from %s to play. Only return the role.

%s

Read the above conversation. Then select the next role from %s to play. Only return the role.`

func renderSelectorPrompt(history string, candidates []RoleDescription) string {
	roles := make([]string, len(candidates))
	names := make([]string, len(candidates))
	for i, c := range candidates {
		roles[i] = fmt.Sprintf("%s: %s", c.ID, c.Description)
		names[i] = c.ID
	}
	list := "[" + strings.Join(names, ", ") + "]"
	return fmt.Sprintf(selectorPrompt, strings.Join(roles, "\n"), list, history, list)
}
