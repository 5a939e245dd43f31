// Package decision parses the structured answer an NPC produces at the end of
// a turn: thoughts, reply, mood, action and animation.
package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/npc"
)

var (
	// ErrNoStructuredPayload means the text holds no balanced {...} span.
	ErrNoStructuredPayload = errors.New("no structured payload")
	// ErrMalformedPayload means the first balanced span is not valid JSON.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrSchemaViolation means the JSON is missing fields or has an invalid mood.
	ErrSchemaViolation = errors.New("schema violation")
)

// ApproveToken ends a selector round and is stripped from fallback replies.
const ApproveToken = "APPROVE"

// DefaultAnimation is used when the reply could not be parsed.
const DefaultAnimation = "talk_passionately"

// StructuredDecision is the parsed final answer for one turn.
type StructuredDecision struct {
	Thoughts  string   `json:"thoughts"`
	Response  string   `json:"response"`
	Mood      npc.Mood `json:"mood"`
	Action    string   `json:"action"`
	Animation string   `json:"animation"`
}

var requiredFields = []string{"thoughts", "response", "mood", "action", "animation"}

// Parse extracts the first balanced JSON object from text and validates it.
func Parse(text string) (*StructuredDecision, error) {
	span, ok := FirstObject(text)
	if !ok {
		return nil, ErrNoStructuredPayload
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	values := make(map[string]string, len(requiredFields))
	for _, name := range requiredFields {
		raw, present := fields[name]
		if !present {
			return nil, fmt.Errorf("%w: missing field %q", ErrSchemaViolation, name)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: field %q must be a string", ErrSchemaViolation, name)
		}
		values[name] = s
	}

	mood, ok := npc.ParseMood(values["mood"])
	if !ok {
		return nil, fmt.Errorf("%w: mood %q is not one of %s", ErrSchemaViolation, values["mood"], npc.MoodList())
	}

	return &StructuredDecision{
		Thoughts:  values["thoughts"],
		Response:  values["response"],
		Mood:      mood,
		Action:    values["action"],
		Animation: values["animation"],
	}, nil
}

// AnimationTag returns the animation name without any ":detail" suffix.
func (d *StructuredDecision) AnimationTag() string {
	return NormalizeAnimation(d.Animation)
}

// NormalizeAnimation keeps the part of an animation before the first colon.
func NormalizeAnimation(animation string) string {
	tag, _, _ := strings.Cut(animation, ":")
	return strings.TrimSpace(tag)
}

// Utterance is what the user is shown for a turn.
type Utterance struct {
	Message   string
	Animation string
}

// Fallback turns raw model output into a plain utterance.
func Fallback(text string) Utterance {
	return Utterance{
		Message:   strings.TrimSpace(strings.ReplaceAll(text, ApproveToken, "")),
		Animation: DefaultAnimation,
	}
}

// Resolve parses text and always yields an utterance. The decision is nil
// and err describes why when the plain-text fallback was used.
func Resolve(text string) (Utterance, *StructuredDecision, error) {
	d, err := Parse(text)
	if err != nil {
		return Fallback(text), nil, err
	}
	return Utterance{Message: d.Response, Animation: d.AnimationTag()}, d, nil
}

// FirstObject returns the first balanced {...} span in text. Braces inside
// JSON strings are ignored.
func FirstObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchBrace(text, start); ok {
			return text[start : end+1], true
		}
		// Unbalanced from here; a later '{' may still open a complete span.
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
