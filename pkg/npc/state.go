package npc

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Persona is the fixed identity of an NPC for the lifetime of a session.
type Persona struct {
	Name       string `json:"name"`
	Background string `json:"background"`
	Behavior   string `json:"behavior"`
}

// Validate checks the persona has a usable name.
func (p Persona) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("persona name cannot be empty")
	}
	if StorageKey(p.Name) == "" {
		return fmt.Errorf("persona name %q has no storable characters", p.Name)
	}
	return nil
}

// ContextFiles are the optional source files attached to a session.
// Script is the static world script (C#), Story is the lore source.
type ContextFiles struct {
	Script string `json:"csharp,omitempty"`
	Story  string `json:"story,omitempty"`
}

// State is the in-memory state of one NPC session.
type State struct {
	Persona           Persona
	Mood              Mood
	Inventory         []string
	ContextFiles      ContextFiles
	ConversationState json.RawMessage
}

// NewState returns the state of a brand-new NPC.
func NewState(p Persona, files ContextFiles) *State {
	return &State{
		Persona:      p,
		Mood:         DefaultMood,
		Inventory:    make([]string, 0),
		ContextFiles: files,
	}
}

// SetMood changes the mood. Values outside the closed set are rejected.
func (s *State) SetMood(m Mood) bool {
	if !m.IsValid() {
		return false
	}
	s.Mood = m
	return true
}

// AddItem appends item to the inventory unless it is empty or already held.
// It reports whether the inventory changed.
func (s *State) AddItem(item string) bool {
	item = strings.TrimSpace(item)
	if item == "" || slices.Contains(s.Inventory, item) {
		return false
	}
	s.Inventory = append(s.Inventory, item)
	return true
}

// DescribeInventory renders the inventory for prompts.
func (s *State) DescribeInventory() string {
	if len(s.Inventory) == 0 {
		return "nothing"
	}
	return strings.Join(s.Inventory, ", ")
}

// Record is the durable form of a session, keyed by StorageKey(persona name).
type Record struct {
	Persona      Persona         `json:"persona"`
	ContextFiles ContextFiles    `json:"context_files"`
	TeamState    json.RawMessage `json:"team_state,omitempty"`
	Mood         Mood            `json:"npc_mood"`
	Inventory    []string        `json:"npc_inventory"`
}

// Record snapshots the state for persistence.
func (s *State) Record() *Record {
	inv := make([]string, len(s.Inventory))
	copy(inv, s.Inventory)
	return &Record{
		Persona:      s.Persona,
		ContextFiles: s.ContextFiles,
		TeamState:    s.ConversationState,
		Mood:         s.Mood,
		Inventory:    inv,
	}
}

// StateFromRecord rebuilds session state from a stored record. Invalid moods
// fall back to the default and duplicate inventory entries are dropped.
func StateFromRecord(rec *Record) *State {
	st := &State{
		Persona:           rec.Persona,
		Mood:              DefaultMood,
		Inventory:         make([]string, 0, len(rec.Inventory)),
		ContextFiles:      rec.ContextFiles,
		ConversationState: rec.TeamState,
	}
	st.SetMood(rec.Mood)
	for _, item := range rec.Inventory {
		st.AddItem(item)
	}
	return st
}

var disallowedKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// StorageKey derives the durable key for a persona name: lower-cased,
// whitespace runs collapsed to "_", anything outside [a-zA-Z0-9_-] removed.
func StorageKey(name string) string {
	key := cases.Lower(language.Und).String(strings.TrimSpace(name))
	key = whitespaceRun.ReplaceAllString(key, "_")
	return disallowedKeyChars.ReplaceAllString(key, "")
}
