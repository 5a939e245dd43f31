package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/services"
)

var testCandidates = []RoleDescription{
	{ID: RoleResponder, Name: "Martha", Description: "speaks"},
	{ID: RoleLore, Name: RoleLore, Description: "lore"},
	{ID: RoleWorldData, Name: RoleWorldData, Description: "world"},
}

func TestSelectorRanker_Rank(t *testing.T) {
	tests := []struct {
		name      string
		replies   []string
		history   []TurnMessage
		want      string
		wantCalls int
	}{
		{
			name:      "single mention",
			replies:   []string{"story_agent"},
			want:      RoleLore,
			wantCalls: 1,
		},
		{
			name:      "mention inside prose",
			replies:   []string{"The next role should be CodeAnalyzerAgent."},
			want:      RoleWorldData,
			wantCalls: 1,
		},
		{
			name:      "retries after ambiguous reply",
			replies:   []string{"responder or story_agent", "responder"},
			want:      RoleResponder,
			wantCalls: 2,
		},
		{
			name:    "falls back to previous speaker",
			replies: []string{"nobody", "no one", "???"},
			history: []TurnMessage{
				UserMessage("hi"),
				{Speaker: RoleLore, Role: MessageRoleSpecialist, Content: "lore"},
			},
			want:      RoleLore,
			wantCalls: DefaultSelectorAttempts,
		},
		{
			name:      "falls back to first candidate",
			replies:   []string{"nobody", "no one", "???"},
			history:   []TurnMessage{UserMessage("hi")},
			want:      RoleResponder,
			wantCalls: DefaultSelectorAttempts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := services.NewMockProvider()
			provider.QueueText(tt.replies...)
			ranker := NewSelectorRanker(provider, testLogger())

			got, err := ranker.Rank(context.Background(), tt.history, testCandidates)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, provider.Calls(), tt.wantCalls)
		})
	}
}

func TestSelectorRanker_SingleCandidateSkipsProvider(t *testing.T) {
	provider := services.NewMockProvider()
	ranker := NewSelectorRanker(provider, testLogger())

	got, err := ranker.Rank(context.Background(), nil, testCandidates[:1])
	require.NoError(t, err)
	assert.Equal(t, RoleResponder, got)
	assert.Empty(t, provider.Calls())
}

func TestSelectorRanker_ProviderErrorSurfaces(t *testing.T) {
	provider := services.NewMockProvider()
	provider.SetGenerateError(services.NewStatusError(401, "bad key"))
	ranker := NewSelectorRanker(provider, testLogger())

	_, err := ranker.Rank(context.Background(), nil, testCandidates)
	assert.True(t, services.IsAuthError(err))
}

func TestMentionedRoles_WholeWordsOnly(t *testing.T) {
	assert.Empty(t, mentionedRoles("myresponder_x", testCandidates))
	assert.Equal(t, []string{RoleResponder}, mentionedRoles("(responder)", testCandidates))
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		name string
		s    string
		word string
		want bool
	}{
		{name: "exact", s: "VisionAgent", word: "VisionAgent", want: true},
		{name: "punctuated", s: "I pick story_agent.", word: "story_agent", want: true},
		{name: "later occurrence counts", s: "responders then responder", word: "responder", want: true},
		{name: "prefix of longer word", s: "story_agents", word: "story_agent", want: false},
		{name: "suffix of longer word", s: "xCodeAnalyzerAgent", word: "CodeAnalyzerAgent", want: false},
		{name: "empty word", s: "anything", word: "", want: false},
		{name: "longer than text", s: "npc", word: "responder", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsWord(tt.s, tt.word))
		})
	}
}
