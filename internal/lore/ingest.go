package lore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ChunkSize is the length, in characters, of an ingested chunk.
const ChunkSize = 1200

// ErrUnsupportedFile is returned for story files that cannot be read as text.
var ErrUnsupportedFile = errors.New("unsupported story file type")

// IngestFile splits a story file into chunks and adds them to mem. It
// returns the number of chunks stored.
func IngestFile(ctx context.Context, mem Memory, path string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read story file: %w", err)
	}
	return IngestText(ctx, mem, string(data), path)
}

// IngestText chunks text and stores each chunk tagged with source.
func IngestText(ctx context.Context, mem Memory, text, source string) (int, error) {
	chunks := Chunk(text, ChunkSize)
	for i, c := range chunks {
		meta := map[string]string{"source": source, "chunk_index": strconv.Itoa(i)}
		if err := mem.Add(ctx, c, meta); err != nil {
			return i, fmt.Errorf("failed to add chunk %d: %w", i, err)
		}
	}
	return len(chunks), nil
}

// Chunk splits text into pieces of at most size characters.
func Chunk(text string, size int) []string {
	if strings.TrimSpace(text) == "" || size <= 0 {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
