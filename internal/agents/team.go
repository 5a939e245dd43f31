// Package agents runs the NPC's specialist team: a roster of roles that take
// turns on a shared thread until one approves or the run hits its message cap.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/decision"
)

const (
	// DefaultMaxMessages ends a run once this many messages, task included,
	// have accumulated.
	DefaultMaxMessages = 20
	// DefaultMaxToolRounds bounds tool execution within one turn.
	DefaultMaxToolRounds = 5
	// DefaultHistoryWindow is how many thread messages a role's prompt carries.
	DefaultHistoryWindow = 30
	// MaxSavedThread bounds the thread kept in a snapshot.
	MaxSavedThread = 100

	snapshotVersion = 1
)

type MessageRole string

const (
	MessageRoleUser       MessageRole = "user"
	MessageRoleSpecialist MessageRole = "specialist"
)

// TurnMessage is one entry of the team thread.
type TurnMessage struct {
	Speaker string      `json:"speaker"`
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	Images  []string    `json:"images,omitempty"`
}

// UserMessage builds a task message.
func UserMessage(content string, images ...string) TurnMessage {
	return TurnMessage{Speaker: string(MessageRoleUser), Role: MessageRoleUser, Content: content, Images: images}
}

func (m TurnMessage) HasImage() bool {
	return len(m.Images) > 0
}

type StopReason string

const (
	StopApproved    StopReason = "approved"
	StopMaxMessages StopReason = "max_messages"
)

// RunResult is the messages of one run, task first.
type RunResult struct {
	Messages   []TurnMessage
	StopReason StopReason
}

// Last returns the final message of the run.
func (r *RunResult) Last() TurnMessage {
	if r == nil || len(r.Messages) == 0 {
		return TurnMessage{}
	}
	return r.Messages[len(r.Messages)-1]
}

// Config wires a Team.
type Config struct {
	Registry *Registry
	Provider services.CompletionProvider
	// Ranker defaults to a SelectorRanker over Provider
	Ranker        Ranker
	Memory        *ShortTermMemory
	Logger        *slog.Logger
	MaxMessages   int
	MaxToolRounds int
	HistoryWindow int
}

// Team drives turn-taking between roles. The thread persists across runs.
type Team struct {
	registry      *Registry
	provider      services.CompletionProvider
	ranker        Ranker
	memory        *ShortTermMemory
	logger        *slog.Logger
	maxMessages   int
	maxToolRounds int
	historyWindow int

	mu     sync.Mutex
	thread []TurnMessage
}

func NewTeam(cfg Config) (*Team, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("team registry is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("team provider is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Ranker == nil {
		cfg.Ranker = NewSelectorRanker(cfg.Provider, cfg.Logger)
	}
	if cfg.Memory == nil {
		cfg.Memory = NewShortTermMemory()
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.HistoryWindow < cfg.MaxMessages {
		cfg.HistoryWindow = max(DefaultHistoryWindow, cfg.MaxMessages)
	}
	return &Team{
		registry:      cfg.Registry,
		provider:      cfg.Provider,
		ranker:        cfg.Ranker,
		memory:        cfg.Memory,
		logger:        cfg.Logger,
		maxMessages:   cfg.MaxMessages,
		maxToolRounds: cfg.MaxToolRounds,
		historyWindow: cfg.HistoryWindow,
	}, nil
}

// Memory returns the short-term memory the responder's tools read.
func (t *Team) Memory() *ShortTermMemory {
	return t.memory
}

// Run seeds the thread with task and alternates selecting and executing
// roles until a produced message contains the approval token or the run
// holds the maximum number of messages. A provider failure aborts the run;
// the messages produced so far are returned with the error.
func (t *Team) Run(ctx context.Context, task TurnMessage) (*RunResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task.Role == "" {
		task.Role = MessageRoleUser
	}
	if task.Speaker == "" {
		task.Speaker = string(MessageRoleUser)
	}
	result := &RunResult{Messages: []TurnMessage{task}}
	t.thread = append(t.thread, task)

	candidates := t.registry.Candidates(task.HasImage())
	if len(candidates) == 0 {
		return result, fmt.Errorf("no eligible roles")
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		role, err := t.selectSpeaker(ctx, candidates)
		if err != nil {
			return result, err
		}

		t.logger.Debug("Role selected", "role", role.ID, "run_messages", len(result.Messages))
		msg, err := t.execute(ctx, role)
		if err != nil {
			return result, fmt.Errorf("role %s failed: %w", role.ID, err)
		}
		result.Messages = append(result.Messages, msg)
		t.thread = append(t.thread, msg)

		if strings.Contains(msg.Content, decision.ApproveToken) {
			result.StopReason = StopApproved
			return result, nil
		}
		if len(result.Messages) >= t.maxMessages {
			result.StopReason = StopMaxMessages
			t.logger.Debug("Run reached message limit", "limit", t.maxMessages)
			return result, nil
		}
	}
}

func (t *Team) selectSpeaker(ctx context.Context, candidates []RoleDescription) (*Role, error) {
	history := t.window()
	id, err := t.ranker.Rank(ctx, history, candidates)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.ID == id {
			role, _ := t.registry.Get(id)
			return role, nil
		}
	}
	fallback := previousSpeaker(history, candidates)
	t.logger.Warn("Ranker returned ineligible role, falling back", "role", id, "fallback", fallback)
	role, _ := t.registry.Get(fallback)
	return role, nil
}

func (t *Team) execute(ctx context.Context, role *Role) (TurnMessage, error) {
	messages := t.prompt(role)
	defs := make([]chat.ToolDefinition, len(role.Tools))
	for i, tool := range role.Tools {
		defs[i] = Definition(tool)
	}

	var lastToolOutput string
	for round := 0; ; round++ {
		completion, err := t.provider.Generate(ctx, messages, defs)
		if err != nil {
			return TurnMessage{}, err
		}
		if !completion.HasToolCalls() || len(role.Tools) == 0 {
			return t.reply(role, completion.Content), nil
		}
		if round >= t.maxToolRounds {
			t.logger.Warn("Tool round limit reached", "role", role.ID, "rounds", round)
			if completion.Content != "" {
				return t.reply(role, completion.Content), nil
			}
			return t.reply(role, lastToolOutput), nil
		}

		outputs := make([]string, 0, len(completion.ToolCalls))
		toolMessages := make([]chat.ChatMessage, 0, len(completion.ToolCalls))
		for _, call := range completion.ToolCalls {
			out := t.callTool(ctx, role, call)
			outputs = append(outputs, out)
			toolMessages = append(toolMessages, chat.ChatMessage{Role: chat.ChatRoleTool, ToolCallID: call.ID, Content: out})
		}
		lastToolOutput = strings.Join(outputs, "\n")

		if !role.ReflectOnToolUse {
			return t.reply(role, lastToolOutput), nil
		}
		messages = append(messages, chat.ChatMessage{
			Role:      chat.ChatRoleAgent,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		messages = append(messages, toolMessages...)
	}
}

// callTool runs one call. Failures become the tool's output so the role can
// react to them.
func (t *Team) callTool(ctx context.Context, role *Role, call chat.ToolCall) string {
	for _, tool := range role.Tools {
		if tool.Name() != call.Name {
			continue
		}
		out, err := tool.Call(ctx, call.Arguments)
		if err != nil {
			t.logger.Warn("Tool call failed", "role", role.ID, "tool", call.Name, "error", err)
			return fmt.Sprintf("Error: %v", err)
		}
		return out
	}
	t.logger.Warn("Unknown tool requested", "role", role.ID, "tool", call.Name)
	return fmt.Sprintf("Error: unknown tool %q", call.Name)
}

func (t *Team) reply(role *Role, content string) TurnMessage {
	return TurnMessage{Speaker: role.ID, Role: MessageRoleSpecialist, Content: content}
}

// prompt renders the role's view of the recent thread. Its own messages
// appear as assistant turns; everyone else's as attributed user turns.
func (t *Team) prompt(role *Role) []chat.ChatMessage {
	history := t.window()
	messages := make([]chat.ChatMessage, 0, len(history)+1)
	if role.SystemPrompt != "" {
		messages = append(messages, chat.ChatMessage{Role: chat.ChatRoleSystem, Content: role.SystemPrompt})
	}
	for _, m := range history {
		cm := chat.ChatMessage{Role: chat.ChatRoleUser, Name: m.Speaker, Content: m.Content}
		switch {
		case m.Role == MessageRoleSpecialist && m.Speaker == role.ID:
			cm.Role = chat.ChatRoleAgent
		case m.Role == MessageRoleSpecialist:
			name := m.Speaker
			if other, ok := t.registry.Get(m.Speaker); ok {
				name = other.DisplayName()
			}
			cm.Content = fmt.Sprintf("[%s]: %s", name, m.Content)
		}
		if role.AcceptsImages {
			cm.Images = m.Images
		}
		messages = append(messages, cm)
	}
	return messages
}

func (t *Team) window() []TurnMessage {
	start := max(0, len(t.thread)-t.historyWindow)
	return append([]TurnMessage(nil), t.thread[start:]...)
}

type teamSnapshot struct {
	Version int           `json:"version"`
	Thread  []TurnMessage `json:"thread"`
	Memory  []MemoryEntry `json:"memory"`
}

// SaveState captures the thread and short-term memory. Image references are
// dropped since uploads do not outlive the session.
func (t *Team) SaveState() (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := max(0, len(t.thread)-MaxSavedThread)
	thread := make([]TurnMessage, 0, len(t.thread)-start)
	for _, m := range t.thread[start:] {
		m.Images = nil
		thread = append(thread, m)
	}
	data, err := json.Marshal(teamSnapshot{
		Version: snapshotVersion,
		Thread:  thread,
		Memory:  t.memory.Entries(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal team state: %w", err)
	}
	return data, nil
}

// LoadState restores a snapshot produced by SaveState. An empty snapshot
// leaves the team fresh.
func (t *Team) LoadState(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var snap teamSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal team state: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported team state version %d", snap.Version)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.thread = snap.Thread
	t.memory.Replace(snap.Memory)
	return nil
}

// Thread returns a copy of the whole thread.
func (t *Team) Thread() []TurnMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TurnMessage(nil), t.thread...)
}
