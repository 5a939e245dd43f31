package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Action
		wantErr error
	}{
		{name: "empty", input: "", want: nil},
		{name: "whitespace", input: "   ", want: nil},
		{name: "move", input: "MOVE:aisle 3", want: &Action{Verb: VerbMove, Target: "aisle 3"}},
		{name: "lowercase verb", input: "interact: cash register ", want: &Action{Verb: VerbInteract, Target: "cash register"}},
		{name: "pickup", input: "PICKUP:wrapper", want: &Action{Verb: VerbPickup, Target: "wrapper"}},
		{
			name:  "update status",
			input: "UPDATE_STATUS:front door, Open",
			want:  &Action{Verb: VerbUpdateStatus, Target: "front door, Open", Object: "front door", Status: "Open"},
		},
		{
			name:  "update status splits once",
			input: "UPDATE_STATUS:sign,Closed, back soon",
			want:  &Action{Verb: VerbUpdateStatus, Target: "sign,Closed, back soon", Object: "sign", Status: "Closed, back soon"},
		},
		{name: "target keeps later colons", input: "MOVE:room:2", want: &Action{Verb: VerbMove, Target: "room:2"}},
		{name: "no separator", input: "DANCE", wantErr: ErrMalformedAction},
		{name: "missing target", input: "MOVE:", wantErr: ErrMalformedAction},
		{name: "update status without comma", input: "UPDATE_STATUS:front door", wantErr: ErrMalformedAction},
		{name: "update status empty status", input: "UPDATE_STATUS:front door,", wantErr: ErrMalformedAction},
		{name: "unknown verb", input: "DANCE:floor", wantErr: ErrUnknownVerb},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAction_EmitsEvent(t *testing.T) {
	assert.True(t, (&Action{Verb: VerbMove}).EmitsEvent())
	assert.True(t, (&Action{Verb: VerbInteract}).EmitsEvent())
	assert.False(t, (&Action{Verb: VerbPickup}).EmitsEvent())
	assert.False(t, (&Action{Verb: VerbUpdateStatus}).EmitsEvent())

	var none *Action
	assert.False(t, none.EmitsEvent())
}
