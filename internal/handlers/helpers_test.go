package handlers

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/agents"
	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/internal/session"
	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/pkg/world"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const approvedReply = `{"thoughts":"greet","response":"Welcome in!","mood":"happy","action":"MOVE:counter","animation":"wave:big"} APPROVE`

type testEnv struct {
	provider *services.MockProvider
	store    *storage.MockStore
	manager  *session.Manager
	dir      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	worldPath := filepath.Join(dir, "world_state.json")
	require.NoError(t, os.WriteFile(worldPath, []byte(`{"objects":[{"Name":"front door","Status":"Closed"}]}`), 0o644))

	env := &testEnv{
		provider: services.NewMockProvider(),
		store:    storage.NewMockStore(),
		dir:      dir,
	}
	env.manager = session.NewManager(session.Deps{
		Providers: func(ctx context.Context) (services.CompletionProvider, error) {
			return env.provider, nil
		},
		Store:     env.store,
		World:     world.NewStore(worldPath, testLogger()),
		UploadDir: filepath.Join(dir, "uploads"),
		Ranker: agents.RankerFunc(func(ctx context.Context, history []agents.TurnMessage, candidates []agents.RoleDescription) (string, error) {
			return agents.RoleResponder, nil
		}),
		Logger: testLogger(),
	})
	t.Cleanup(func() { env.manager.CloseAll(context.Background()) })
	return env
}
