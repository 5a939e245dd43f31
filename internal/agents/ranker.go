package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// Ranker picks the next speaker among candidates given the history.
type Ranker interface {
	Rank(ctx context.Context, history []TurnMessage, candidates []RoleDescription) (string, error)
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(ctx context.Context, history []TurnMessage, candidates []RoleDescription) (string, error)

func (f RankerFunc) Rank(ctx context.Context, history []TurnMessage, candidates []RoleDescription) (string, error) {
	return f(ctx, history, candidates)
}

// DefaultSelectorAttempts is how many times SelectorRanker asks before
// falling back.
const DefaultSelectorAttempts = 3

// SelectorRanker asks the completion provider to name the next role. When
// no attempt names exactly one candidate it falls back to the previous
// speaker, or the first candidate if the previous speaker is not eligible.
type SelectorRanker struct {
	provider    services.CompletionProvider
	maxAttempts int
	logger      *slog.Logger
}

var _ Ranker = (*SelectorRanker)(nil)

func NewSelectorRanker(provider services.CompletionProvider, logger *slog.Logger) *SelectorRanker {
	return &SelectorRanker{provider: provider, maxAttempts: DefaultSelectorAttempts, logger: logger}
}

func (s *SelectorRanker) Rank(ctx context.Context, history []TurnMessage, candidates []RoleDescription) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidates to rank")
	}
	if len(candidates) == 1 {
		return candidates[0].ID, nil
	}

	messages := []chat.ChatMessage{{
		Role:    chat.ChatRoleUser,
		Content: renderSelectorPrompt(renderHistory(history), candidates),
	}}
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		completion, err := s.provider.Generate(ctx, messages, nil)
		if err != nil {
			return "", fmt.Errorf("failed to select speaker: %w", err)
		}
		mentioned := mentionedRoles(completion.Content, candidates)
		if len(mentioned) == 1 {
			return mentioned[0], nil
		}

		feedback := "No valid role was mentioned."
		if len(mentioned) > 1 {
			feedback = fmt.Sprintf("Expected exactly one role to be mentioned, but got %s.", strings.Join(mentioned, ", "))
		}
		s.logger.Debug("Speaker selection attempt rejected", "attempt", attempt, "reply", completion.Content)
		messages = append(messages,
			chat.ChatMessage{Role: chat.ChatRoleAgent, Content: completion.Content},
			chat.ChatMessage{Role: chat.ChatRoleUser, Content: feedback + " Please try again with a single role name."},
		)
	}

	fallback := previousSpeaker(history, candidates)
	s.logger.Warn("Speaker selection failed, falling back", "attempts", s.maxAttempts, "role", fallback)
	return fallback, nil
}

func mentionedRoles(reply string, candidates []RoleDescription) []string {
	var out []string
	for _, c := range candidates {
		if containsWord(reply, c.ID) {
			out = append(out, c.ID)
		}
	}
	return out
}

// containsWord reports whether word occurs in s delimited by non-word bytes
// or the ends of s. Word bytes are ASCII letters, digits and '_'.
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for from := 0; from <= len(s)-len(word); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(word)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func previousSpeaker(history []TurnMessage, candidates []RoleDescription) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != MessageRoleSpecialist {
			continue
		}
		for _, c := range candidates {
			if c.ID == history[i].Speaker {
				return c.ID
			}
		}
		break
	}
	return candidates[0].ID
}

func renderHistory(history []TurnMessage) string {
	var sb strings.Builder
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Speaker, m.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}
