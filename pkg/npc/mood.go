package npc

import "strings"

// Mood is the NPC's current emotional state. The set is closed.
type Mood string

const (
	MoodNeutral   Mood = "neutral"
	MoodHappy     Mood = "happy"
	MoodSad       Mood = "sad"
	MoodAngry     Mood = "angry"
	MoodCurious   Mood = "curious"
	MoodExcited   Mood = "excited"
	MoodConfused  Mood = "confused"
	MoodSarcastic Mood = "sarcastic"
)

// DefaultMood is the mood of a freshly created NPC.
const DefaultMood = MoodNeutral

var validMoods = []Mood{
	MoodNeutral,
	MoodHappy,
	MoodSad,
	MoodAngry,
	MoodCurious,
	MoodExcited,
	MoodConfused,
	MoodSarcastic,
}

// ValidMoods returns the closed mood set in declaration order.
func ValidMoods() []Mood {
	out := make([]Mood, len(validMoods))
	copy(out, validMoods)
	return out
}

// ParseMood returns the Mood for s if s is exactly one of the valid moods.
func ParseMood(s string) (Mood, bool) {
	for _, m := range validMoods {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// IsValid reports whether m belongs to the closed mood set.
func (m Mood) IsValid() bool {
	_, ok := ParseMood(string(m))
	return ok
}

// MoodList formats the valid moods for prompts, e.g. 'neutral', 'happy'.
func MoodList() string {
	quoted := make([]string, len(validMoods))
	for i, m := range validMoods {
		quoted[i] = "'" + string(m) + "'"
	}
	return strings.Join(quoted, ", ")
}
