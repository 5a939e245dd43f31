package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

func TestMockProvider(t *testing.T) {
	mock := NewMockProvider()
	ctx := context.Background()
	messages := []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Hello"}}

	completion, err := mock.Generate(ctx, messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "Mock response", completion.Content)

	mock.QueueText("first", "second")
	first, _ := mock.Generate(ctx, messages, nil)
	second, _ := mock.Generate(ctx, messages, nil)
	third, _ := mock.Generate(ctx, messages, nil)
	assert.Equal(t, "first", first.Content)
	assert.Equal(t, "second", second.Content)
	assert.Equal(t, "Mock response", third.Content)

	assert.Len(t, mock.Calls(), 4)
	assert.Equal(t, "Hello", mock.Calls()[0].Messages[0].Content)

	require.NoError(t, mock.Close())
	assert.Equal(t, 1, mock.Closed())

	mock.Reset()
	assert.Empty(t, mock.Calls())
	assert.Zero(t, mock.Closed())
}

func TestMockProvider_ErrorHandling(t *testing.T) {
	mock := NewMockProvider()
	expectedErr := errors.New("generation failed")
	mock.SetGenerateError(expectedErr)

	_, err := mock.Generate(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "hi"}}, nil)
	assert.ErrorIs(t, err, expectedErr)
}
