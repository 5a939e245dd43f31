package agents

import (
	"fmt"

	"github.com/jwebster45206/npc-engine/internal/lore"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

// Stable role identifiers.
const (
	RoleResponder = "responder"
	RoleLore      = "story_agent"
	RoleWorldData = "CodeAnalyzerAgent"
	RoleScene     = "VisionAgent"
)

// Role is one specialist on the team.
type Role struct {
	ID string
	// Name is shown to other roles and the ranker; defaults to ID
	Name         string
	Description  string
	SystemPrompt string
	Tools        []Tool
	// ReflectOnToolUse sends tool results back to the provider and uses the
	// next generation as output. Otherwise tool results are the output.
	ReflectOnToolUse bool
	AcceptsImages    bool
	// RequiresImage makes the role eligible only when the run's task has an image
	RequiresImage bool
}

func (r *Role) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// RoleDescription is what the ranker sees of a role.
type RoleDescription struct {
	ID          string
	Name        string
	Description string
}

// Registry is a fixed, ordered roster of roles.
type Registry struct {
	roles []*Role
	byID  map[string]*Role
}

// NewRegistry builds a roster; IDs must be unique and non-empty.
func NewRegistry(roles ...*Role) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Role, len(roles))}
	for _, role := range roles {
		if role.ID == "" {
			return nil, fmt.Errorf("role id cannot be empty")
		}
		if _, exists := r.byID[role.ID]; exists {
			return nil, fmt.Errorf("role %s already registered", role.ID)
		}
		r.roles = append(r.roles, role)
		r.byID[role.ID] = role
	}
	if len(r.roles) == 0 {
		return nil, fmt.Errorf("registry needs at least one role")
	}
	return r, nil
}

func (r *Registry) Get(id string) (*Role, bool) {
	role, ok := r.byID[id]
	return role, ok
}

// Roles returns the roster in order.
func (r *Registry) Roles() []*Role {
	return append([]*Role(nil), r.roles...)
}

// Candidates returns the roles eligible to speak in a run, in roster order.
func (r *Registry) Candidates(taskHasImage bool) []RoleDescription {
	out := make([]RoleDescription, 0, len(r.roles))
	for _, role := range r.roles {
		if role.RequiresImage && !taskHasImage {
			continue
		}
		out = append(out, RoleDescription{ID: role.ID, Name: role.DisplayName(), Description: role.Description})
	}
	return out
}

// RosterConfig carries what the default roster's tools are bound to.
type RosterConfig struct {
	Persona    npc.Persona
	Memory     *ShortTermMemory
	Lore       lore.Memory
	World      WorldReader
	ScriptPath string
}

// DefaultRegistry builds the four-role NPC roster.
func DefaultRegistry(cfg RosterConfig) (*Registry, error) {
	p := cfg.Persona
	responder := &Role{
		ID:   RoleResponder,
		Name: p.Name,
		Description: "The synthesizer and final responder who speaks to the user. This agent DOES NOT possess " +
			"factual knowledge on its own. It MUST wait for specialists like CodeAnalyzerAgent or story_agent " +
			"to provide data before answering any factual question.",
		SystemPrompt: responderPrompt(p),
		Tools: []Tool{
			NewPerceptionTool(p),
			NewPersonalityTool(p),
			NewMemoryTool(p, cfg.Memory),
		},
		ReflectOnToolUse: true,
	}
	loreRole := &Role{
		ID: RoleLore,
		Description: "A specialist data-gathering agent. Call this agent when the user asks a Factual Inquiry " +
			"about background lore or story details. Its job is to provide context to the main NPC.",
		SystemPrompt: lorePrompt(p),
		Tools:        []Tool{NewLoreTool(cfg.Lore)},
	}
	worldRole := &Role{
		ID: RoleWorldData,
		Description: "A specialist data-gathering agent. Call this agent when the user asks a Factual Inquiry " +
			"about the game world, such as item locations, store layout, or object status. Its output is raw " +
			"JSON data for the main NPC to use.",
		SystemPrompt: worldDataPrompt,
		Tools:        []Tool{NewEnvironmentTool(cfg.World, cfg.ScriptPath)},
	}
	scene := &Role{
		ID:            RoleScene,
		Description:   "Specialized agent for describing the content of images/screenshots from the game world.",
		SystemPrompt:  scenePrompt,
		AcceptsImages: true,
		RequiresImage: true,
	}
	return NewRegistry(responder, loreRole, worldRole, scene)
}
