package decision

import (
	"errors"
	"fmt"
	"strings"
)

// Verb is the command half of an action.
type Verb string

const (
	VerbMove         Verb = "MOVE"
	VerbInteract     Verb = "INTERACT"
	VerbPickup       Verb = "PICKUP"
	VerbUpdateStatus Verb = "UPDATE_STATUS"
)

var (
	// ErrUnknownVerb is returned for well-formed actions with an unsupported verb.
	ErrUnknownVerb = errors.New("unknown action verb")
	// ErrMalformedAction is returned when an action does not follow VERB:target.
	ErrMalformedAction = errors.New("malformed action")
)

// Action is a parsed VERB:target action.
type Action struct {
	Verb   Verb
	Target string

	// Set only for UPDATE_STATUS.
	Object string
	Status string
}

// ParseAction parses an action string. An empty action returns (nil, nil).
// The verb is split from the target at the first ':' and matched
// case-insensitively; UPDATE_STATUS targets split at the first ','.
func ParseAction(action string) (*Action, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, nil
	}

	verbPart, target, found := strings.Cut(action, ":")
	if !found {
		return nil, fmt.Errorf("%w: %q has no ':' separator", ErrMalformedAction, action)
	}
	verb := Verb(strings.ToUpper(strings.TrimSpace(verbPart)))
	target = strings.TrimSpace(target)
	if verb == "" || target == "" {
		return nil, fmt.Errorf("%w: %q needs both a verb and a target", ErrMalformedAction, action)
	}

	a := &Action{Verb: verb, Target: target}
	switch verb {
	case VerbMove, VerbInteract, VerbPickup:
		return a, nil
	case VerbUpdateStatus:
		object, status, found := strings.Cut(target, ",")
		object, status = strings.TrimSpace(object), strings.TrimSpace(status)
		if !found || object == "" || status == "" {
			return nil, fmt.Errorf("%w: UPDATE_STATUS target %q must be 'object, status'", ErrMalformedAction, target)
		}
		a.Object = object
		a.Status = status
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVerb, verbPart)
	}
}

// EmitsEvent reports whether the action is announced to the game client.
func (a *Action) EmitsEvent() bool {
	return a != nil && (a.Verb == VerbMove || a.Verb == VerbInteract)
}
