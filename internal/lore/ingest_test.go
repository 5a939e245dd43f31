package lore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk("", ChunkSize))
	assert.Equal(t, []string{"abc"}, Chunk("abc", ChunkSize))

	text := strings.Repeat("a", 2500)
	chunks := Chunk(text, ChunkSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1200)
	assert.Len(t, chunks[1], 1200)
	assert.Len(t, chunks[2], 100)

	// counted in characters, not bytes
	multi := Chunk(strings.Repeat("é", 1201), ChunkSize)
	require.Len(t, multi, 2)
	assert.Equal(t, "é", multi[1])
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, filepath.Join(dir, "lore.db"), "grocer")
	ctx := context.Background()

	story := filepath.Join(dir, "story.txt")
	text := strings.Repeat("The market opens at dawn. ", 60)
	require.NoError(t, os.WriteFile(story, []byte(text), 0o644))

	n, err := IngestFile(ctx, store, story)
	require.NoError(t, err)
	assert.Equal(t, len(Chunk(text, ChunkSize)), n)

	// ingesting the same file again replaces chunks instead of duplicating
	_, err = IngestFile(ctx, store, story)
	require.NoError(t, err)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)
}

func TestIngestFile_Unsupported(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, filepath.Join(dir, "lore.db"), "grocer")
	pdf := filepath.Join(dir, "story.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))

	_, err := IngestFile(context.Background(), store, pdf)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}
