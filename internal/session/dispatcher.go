package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/decision"
	"github.com/jwebster45206/npc-engine/pkg/npc"
	"github.com/jwebster45206/npc-engine/pkg/world"
)

// WorldUpdater changes the status of a named world object.
type WorldUpdater interface {
	Update(ctx context.Context, name, status string) error
}

// Dispatcher applies a validated decision to session state and the world.
type Dispatcher struct {
	world  WorldUpdater
	logger *slog.Logger
}

func NewDispatcher(w WorldUpdater, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{world: w, logger: logger}
}

// Dispatch sets the mood and carries out the decision's action. It returns
// the action notification for MOVE and INTERACT, nil otherwise. Nothing here
// fails the turn; problems are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, st *npc.State, dec *decision.StructuredDecision) *chat.Notification {
	if !st.SetMood(dec.Mood) {
		d.logger.Warn("Ignoring invalid mood", "mood", dec.Mood)
	}

	action, err := decision.ParseAction(dec.Action)
	if err != nil {
		d.logger.Warn("Ignoring action", "action", dec.Action, "error", err)
		return nil
	}
	if action == nil {
		return nil
	}

	switch action.Verb {
	case decision.VerbMove, decision.VerbInteract:
		n := chat.ActionNotification(string(action.Verb), action.Target, dec.AnimationTag())
		return &n
	case decision.VerbPickup:
		if st.AddItem(action.Target) {
			d.logger.Info("Inventory updated", "item", action.Target)
		}
	case decision.VerbUpdateStatus:
		if d.world == nil {
			d.logger.Warn("No world store; dropping status update", "object", action.Object)
			return nil
		}
		err := d.world.Update(ctx, action.Object, action.Status)
		switch {
		case errors.Is(err, world.ErrObjectNotFound):
			d.logger.Warn("World object not found", "object", action.Object)
		case err != nil:
			d.logger.Error("Failed to update world state", "object", action.Object, "error", err)
		default:
			d.logger.Info("World state updated", "object", action.Object, "status", action.Status)
		}
	}
	return nil
}
