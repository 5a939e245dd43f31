package main

import (
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

func activeUI(t *testing.T) ConsoleUI {
	t.Helper()
	m := NewConsoleUI(&ConsoleConfig{APIBaseURL: "http://localhost:8080"}, http.DefaultClient)
	m.showAvatarModal = false
	m.persona = npc.Persona{Name: "Martha"}
	m.sessionID = "0123456789abcdef"
	m.ready = true
	m.width, m.height = 120, 40
	m.layout()
	return m
}

func TestUpdate_NotificationsEndLoadingAndTrackActions(t *testing.T) {
	m := activeUI(t)
	m.loading = true

	model, _ := m.Update(notificationMsg{chat.DialogueNotification("Right this way.", "wave")})
	m = model.(ConsoleUI)
	assert.False(t, m.loading)
	assert.Equal(t, 1, m.turns)

	model, _ = m.Update(notificationMsg{chat.ActionNotification("MOVE", "counter", "wave")})
	m = model.(ConsoleUI)
	require.NotNil(t, m.lastAction)
	assert.Equal(t, "counter", m.lastAction.Target)
	require.Len(t, m.history, 2)
	assert.Equal(t, entryAction, m.history[1].kind)
	assert.Contains(t, writeMetadata(&m), "MOVE counter")
}

func TestUpdate_DisconnectBlocksInput(t *testing.T) {
	m := activeUI(t)

	model, _ := m.Update(disconnectedMsg{})
	m = model.(ConsoleUI)
	assert.True(t, m.disconnected)

	m.textarea.SetValue("hello")
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(ConsoleUI)
	assert.Nil(t, cmd)
	assert.False(t, m.loading)
}

func TestUpdate_AvatarModalOffersNewCharacter(t *testing.T) {
	m := NewConsoleUI(&ConsoleConfig{}, http.DefaultClient)

	model, _ := m.Update(avatarsLoadedMsg{avatars: []npc.Persona{{Name: "Martha"}}})
	m = model.(ConsoleUI)
	assert.False(t, m.loadingAvatars)

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = model.(ConsoleUI)
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(ConsoleUI)

	assert.False(t, m.showAvatarModal)
	assert.True(t, m.showPersonaForm)
	assert.Equal(t, "Name", m.textarea.Placeholder)
}

func TestUpdatePersonaForm_RejectsInvalidPersona(t *testing.T) {
	m := NewConsoleUI(&ConsoleConfig{}, http.DefaultClient)
	m.showAvatarModal = false
	m.showPersonaForm = true
	m.loadingAvatars = false

	for range personaFields {
		model, _ := m.updatePersonaForm(tea.KeyMsg{Type: tea.KeyEnter})
		m = model.(ConsoleUI)
	}

	assert.Error(t, m.err)
	assert.Equal(t, 0, m.formStep)
	assert.False(t, m.loading)
}

func TestFormatEntry(t *testing.T) {
	out := formatEntry(chatEntry{kind: entryAction, note: chat.ActionNotification("MOVE", "counter", "wave")}, "Martha", 60)
	assert.Contains(t, out, "Martha move counter (wave)")
}
