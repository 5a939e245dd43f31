package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/npc"
)

func TestManager_Lifecycle(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps)
	ctx := context.Background()

	a, err := m.Create(ctx, OpenRequest{Persona: martha})
	require.NoError(t, err)
	b, err := m.Create(ctx, OpenRequest{Persona: npc.Persona{Name: "Old Tom"}})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	require.NoError(t, m.Close(ctx, a.ID()))
	_, ok = m.Get(a.ID())
	assert.False(t, ok)
	assert.Equal(t, StateClosed, a.State())
	assert.Error(t, m.Close(ctx, a.ID()))

	m.CloseAll(ctx)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 2, f.store.SaveCalls())
}

func TestManager_CreateFailureRegistersNothing(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps)

	_, err := m.Create(context.Background(), OpenRequest{Persona: npc.Persona{Name: "!!!"}})
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}
