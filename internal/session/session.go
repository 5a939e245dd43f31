// Package session ties one NPC's state, specialist team and lore together
// for the lifetime of a client connection.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jwebster45206/npc-engine/internal/agents"
	"github.com/jwebster45206/npc-engine/internal/logger"
	"github.com/jwebster45206/npc-engine/internal/lore"
	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/internal/services/events"
	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/decision"
	"github.com/jwebster45206/npc-engine/pkg/npc"
	"github.com/jwebster45206/npc-engine/pkg/world"
)

var (
	// ErrSessionClosed is returned for messages sent after Close began.
	ErrSessionClosed = errors.New("session closed")
	// ErrProviderAuth means the completion provider rejected our credentials.
	ErrProviderAuth = errors.New("provider authentication failed")
)

type State int

const (
	StateUninitialized State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProviderFactory builds the completion provider a session owns.
type ProviderFactory func(ctx context.Context) (services.CompletionProvider, error)

// Deps are the collaborators shared by every session.
type Deps struct {
	Providers ProviderFactory
	Store     storage.SessionStore
	World     *world.Store
	Publisher events.Publisher
	// UploadDir is the only directory Close deletes artifacts from.
	UploadDir string
	// LoreDBPath is the SQLite file lore collections live in. Empty disables lore.
	LoreDBPath string
	// Ranker overrides the provider-backed speaker selector.
	Ranker agents.Ranker
	Logger *slog.Logger
}

// OpenRequest describes the NPC a client wants to talk to.
type OpenRequest struct {
	Persona    npc.Persona
	StoryPath  string
	ScriptPath string
	ImagePath  string
}

// Session is one conversation with one NPC.
type Session struct {
	id         string
	key        string
	restored   bool
	imagePath  string
	scriptPath string // script in use this session; empty when missing
	scene      string
	uploadDir  string
	store      storage.SessionStore
	provider   services.CompletionProvider
	lore       *lore.SQLiteStore
	team       *agents.Team
	dispatcher *Dispatcher
	publisher  events.Publisher
	logger     *slog.Logger

	mu        sync.Mutex // serializes turns and guards state
	state     State
	npc       *npc.State
	started   bool
	closeOnce sync.Once
}

// Open builds a session for req. A stored record under the persona's key is
// restored; otherwise a fresh NPC is created with the request's context
// files, dropping paths that do not exist. A restored NPC keeps its saved
// paths, but missing files are neither indexed nor read. A record that
// cannot be loaded fails Open so it is never overwritten.
func Open(ctx context.Context, id string, req OpenRequest, deps Deps) (*Session, error) {
	if err := req.Persona.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persona: %w", err)
	}
	if deps.Providers == nil || deps.Store == nil || deps.World == nil {
		return nil, fmt.Errorf("session requires providers, a store and a world")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}

	key := npc.StorageKey(req.Persona.Name)
	log := logger.WithSession(deps.Logger, id).With("npc", key)

	provider, err := deps.Providers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	if err := provider.Ping(ctx); err != nil {
		if services.IsAuthError(err) {
			_ = provider.Close()
			return nil, fmt.Errorf("%w: %w", ErrProviderAuth, err)
		}
		log.Warn("Provider ping failed; continuing", "error", err)
	}

	s := &Session{
		id:        id,
		key:       key,
		uploadDir: deps.UploadDir,
		store:     deps.Store,
		provider:  provider,
		publisher: deps.Publisher,
		scene:     NoSceneDescription,
		logger:    log,
	}
	s.dispatcher = NewDispatcher(deps.World, log)

	rec, err := deps.Store.LoadRecord(ctx, key)
	if err != nil {
		// An unreadable record must not be overwritten by a fresh one on close.
		s.release()
		return nil, fmt.Errorf("failed to load saved state for %q: %w", key, err)
	}
	var files npc.ContextFiles
	if rec != nil {
		s.restored = true
		s.npc = npc.StateFromRecord(rec)
		// Saved references are kept even when the files are gone; only
		// their use below depends on the files still existing.
		files = npc.ContextFiles{
			Script: existingFile(rec.ContextFiles.Script),
			Story:  existingFile(rec.ContextFiles.Story),
		}
		log.Info("Restoring saved NPC")
	} else {
		files = npc.ContextFiles{
			Script: existingFile(req.ScriptPath),
			Story:  existingFile(req.StoryPath),
		}
		s.npc = npc.NewState(req.Persona, files)
		s.imagePath = existingFile(req.ImagePath)
		log.Info("Creating new NPC")
	}
	s.scriptPath = files.Script

	if deps.LoreDBPath != "" {
		s.lore, err = lore.Open(ctx, deps.LoreDBPath, key, log)
		if err != nil {
			log.Error("Lore memory unavailable", "error", err)
			s.lore = nil
		}
	}
	if s.lore != nil && files.Story != "" {
		n, err := lore.IngestFile(ctx, s.lore, files.Story)
		switch {
		case errors.Is(err, lore.ErrUnsupportedFile):
			log.Warn("Story file not indexed", "path", files.Story, "error", err)
		case err != nil:
			log.Error("Failed to index story file", "path", files.Story, "error", err)
		default:
			log.Info("Story file indexed", "path", files.Story, "chunks", n)
		}
	}

	memory := agents.NewShortTermMemory()
	roster := agents.RosterConfig{
		Persona:    s.npc.Persona,
		Memory:     memory,
		World:      deps.World,
		ScriptPath: files.Script,
	}
	if s.lore != nil {
		roster.Lore = s.lore
	}
	registry, err := agents.DefaultRegistry(roster)
	if err != nil {
		s.release()
		return nil, fmt.Errorf("failed to build roster: %w", err)
	}
	s.team, err = agents.NewTeam(agents.Config{
		Registry: registry,
		Provider: provider,
		Ranker:   deps.Ranker,
		Memory:   memory,
		Logger:   log,
	})
	if err != nil {
		s.release()
		return nil, fmt.Errorf("failed to build team: %w", err)
	}
	if s.restored {
		if err := s.team.LoadState(s.npc.ConversationState); err != nil {
			log.Error("Failed to restore conversation; starting it fresh", "error", err)
		}
	}

	s.state = StateActive
	if err := s.publisher.PublishSessionOpened(ctx, id); err != nil {
		log.Warn("Failed to publish session opened", "error", err)
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Key is the storage key derived from the persona name.
func (s *Session) Key() string { return s.key }

func (s *Session) Persona() npc.Persona { return s.npc.Persona }

// Restored reports whether the session resumed a saved NPC.
func (s *Session) Restored() bool { return s.restored }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mood returns the NPC's current mood.
func (s *Session) Mood() npc.Mood {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.npc.Mood
}

// Inventory returns a copy of the NPC's inventory.
func (s *Session) Inventory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.npc.Inventory...)
}

// Scene returns the scene description used as turn context.
func (s *Session) Scene() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// Start describes the uploaded scene image of a fresh session. It runs at
// most once; a failed description leaves the placeholder text in place.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.state != StateActive {
		return
	}
	s.started = true
	if s.restored || s.imagePath == "" {
		return
	}

	result, err := s.team.Run(ctx, agents.UserMessage(sceneRequest, s.imagePath))
	if err != nil {
		s.logger.Warn("Could not describe scene image", "path", s.imagePath, "error", err)
		return
	}
	if desc := sceneDescription(result.Last().Content); desc != "" {
		s.scene = desc
	}
	s.logger.Info("Scene described", "description", s.scene)
}

// sceneDescription prefers the "response" field of a JSON reply and falls
// back to the raw text without the approval token.
func sceneDescription(text string) string {
	if span, ok := decision.FirstObject(text); ok {
		var fields map[string]any
		if json.Unmarshal([]byte(span), &fields) == nil {
			if resp, ok := fields["response"].(string); ok && resp != "" {
				return resp
			}
		}
	}
	return decision.Fallback(text).Message
}

// HandleMessage runs one turn for message. The result is exactly one
// dialogue notification, optionally followed by an action, or a single
// error notification when the provider failed.
func (s *Session) HandleMessage(ctx context.Context, message string) ([]chat.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil, ErrSessionClosed
	}

	prompt := taskPrompt(message, s.npc, s.scene, s.scriptPath)
	result, err := s.team.Run(ctx, agents.UserMessage(prompt))
	if err != nil {
		s.logger.Error("Turn failed", "error", err)
		out := []chat.Notification{chat.ErrorNotification(services.UserMessageFor(err))}
		s.publish(ctx, out)
		return out, nil
	}

	raw := result.Last().Content
	utterance, dec, err := decision.Resolve(raw)
	if err != nil {
		s.logger.Warn("Reply did not match the response contract; using plain text", "error", err)
	}

	out := []chat.Notification{chat.DialogueNotification(utterance.Message, utterance.Animation)}
	if dec != nil {
		if action := s.dispatcher.Dispatch(ctx, s.npc, dec); action != nil {
			out = append(out, *action)
		}
	}

	mem := s.team.Memory()
	mem.Add(string(agents.MessageRoleUser), message)
	mem.Add(s.npc.Persona.Name, utterance.Message)

	s.publish(ctx, out)
	return out, nil
}

func (s *Session) publish(ctx context.Context, notes []chat.Notification) {
	for _, n := range notes {
		if err := s.publisher.PublishNotification(ctx, s.id, n); err != nil {
			s.logger.Warn("Failed to publish notification", "type", n.Type, "error", err)
		}
	}
}

// Close persists the NPC, removes uploaded artifacts and releases lore and
// provider resources. It waits for an in-flight turn and runs once; later
// calls return nil.
func (s *Session) Close(ctx context.Context) error {
	var saveErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		defer func() {
			s.state = StateClosed
			s.mu.Unlock()
		}()
		defer s.release()

		saveErr = s.save(ctx)
		if saveErr != nil {
			s.logger.Error("Failed to save session state", "error", saveErr)
		} else {
			s.logger.Info("Session state saved")
		}
		s.removeUploads()

		if err := s.publisher.PublishSessionClosed(ctx, s.id); err != nil {
			s.logger.Warn("Failed to publish session closed", "error", err)
		}
	})
	return saveErr
}

func (s *Session) save(ctx context.Context) error {
	conv, err := s.team.SaveState()
	if err != nil {
		return err
	}
	s.npc.ConversationState = conv
	if err := s.store.SaveRecord(ctx, s.key, s.npc.Record()); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// removeUploads deletes context artifacts that live under the upload
// directory. Paths elsewhere are left alone.
func (s *Session) removeUploads() {
	if s.uploadDir == "" {
		return
	}
	root, err := filepath.Abs(s.uploadDir)
	if err != nil {
		s.logger.Warn("Cannot resolve upload directory", "error", err)
		return
	}
	for _, p := range []string{s.npc.ContextFiles.Script, s.npc.ContextFiles.Story, s.imagePath} {
		if p == "" || !within(root, p) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to delete upload", "path", p, "error", err)
			continue
		}
		s.logger.Debug("Deleted upload", "path", p)
	}
}

func (s *Session) release() {
	if s.lore != nil {
		if err := s.lore.Close(); err != nil {
			s.logger.Warn("Failed to close lore memory", "error", err)
		}
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Warn("Failed to close provider", "error", err)
		}
	}
}

func within(root, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func existingFile(path string) string {
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
