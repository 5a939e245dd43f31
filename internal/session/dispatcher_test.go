package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/decision"
	"github.com/jwebster45206/npc-engine/pkg/npc"
	"github.com/jwebster45206/npc-engine/pkg/world"
)

type fakeWorld struct {
	updates map[string]string
	err     error
}

func (w *fakeWorld) Update(ctx context.Context, name, status string) error {
	if w.err != nil {
		return w.err
	}
	if w.updates == nil {
		w.updates = make(map[string]string)
	}
	w.updates[name] = status
	return nil
}

func TestDispatcher_Dispatch(t *testing.T) {
	tests := []struct {
		name          string
		action        string
		worldErr      error
		wantNote      *chat.Notification
		wantInventory []string
		wantUpdates   map[string]string
	}{
		{name: "no action", action: ""},
		{
			name:     "move",
			action:   "MOVE:checkout",
			wantNote: &chat.Notification{Type: chat.NotificationAction, Command: "MOVE", Target: "checkout", Animation: "walk"},
		},
		{
			name:     "interact",
			action:   "Interact:cash register",
			wantNote: &chat.Notification{Type: chat.NotificationAction, Command: "INTERACT", Target: "cash register", Animation: "walk"},
		},
		{name: "pickup", action: "PICKUP:receipt", wantInventory: []string{"receipt"}},
		{name: "update status", action: "UPDATE_STATUS:front door, Open", wantUpdates: map[string]string{"front door": "Open"}},
		{name: "update status missing object", action: "UPDATE_STATUS:vault, Open", worldErr: world.ErrObjectNotFound},
		{name: "update status store failure", action: "UPDATE_STATUS:vault, Open", worldErr: errors.New("disk gone")},
		{name: "unknown verb", action: "DANCE:floor"},
		{name: "malformed", action: "just vibes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWorld{err: tt.worldErr}
			st := npc.NewState(martha, npc.ContextFiles{})
			d := NewDispatcher(w, testLogger())

			note := d.Dispatch(context.Background(), st, &decision.StructuredDecision{
				Mood:      "curious",
				Action:    tt.action,
				Animation: "walk:brisk",
			})

			assert.Equal(t, tt.wantNote, note)
			assert.Equal(t, npc.Mood("curious"), st.Mood, "mood is applied whatever the action")
			if tt.wantInventory != nil {
				assert.Equal(t, tt.wantInventory, st.Inventory)
			} else {
				assert.Empty(t, st.Inventory)
			}
			assert.Equal(t, tt.wantUpdates, w.updates)
		})
	}
}

func TestDispatcher_PickupTwiceKeepsOneItem(t *testing.T) {
	st := npc.NewState(martha, npc.ContextFiles{})
	d := NewDispatcher(&fakeWorld{}, testLogger())
	dec := &decision.StructuredDecision{Mood: "neutral", Action: "PICKUP:wrapper"}

	require.Nil(t, d.Dispatch(context.Background(), st, dec))
	require.Nil(t, d.Dispatch(context.Background(), st, dec))
	assert.Equal(t, []string{"wrapper"}, st.Inventory)
}
