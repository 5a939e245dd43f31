package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/npc"
	"github.com/jwebster45206/npc-engine/pkg/world"
)

const recordSuffix = "_state.json"

// FileStore keeps each record as <key>_state.json in one directory. Writes
// go through a temp file and rename.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

var _ SessionStore = (*FileStore)(nil)

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		dir = "./state"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Path returns the file a key is stored in.
func (f *FileStore) Path(key string) string {
	return filepath.Join(f.dir, key+recordSuffix)
}

func (f *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("state directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("state path %s is not a directory", f.dir)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) SaveRecord(ctx context.Context, key string, rec *npc.Record) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		f.logger.Error("Failed to marshal session record", "key", key, "error", err)
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	if err := world.WriteFileAtomic(f.Path(key), append(data, '\n'), 0o644); err != nil {
		f.logger.Error("Failed to save session record", "key", key, "error", err)
		return fmt.Errorf("failed to save session record: %w", err)
	}
	return nil
}

func (f *FileStore) LoadRecord(ctx context.Context, key string) (*npc.Record, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}
	var rec npc.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		f.logger.Error("Failed to unmarshal session record", "key", key, "error", err)
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &rec, nil
}

func (f *FileStore) DeleteRecord(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}

func (f *FileStore) ListRecords(ctx context.Context) ([]*npc.Record, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), recordSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	recs := make([]*npc.Record, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			f.logger.Warn("Failed to read state file", "file", name, "error", err)
			continue
		}
		var rec npc.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			f.logger.Warn("Failed to parse state file", "file", name, "error", err)
			continue
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

func validKey(key string) error {
	if key == "" || key != npc.StorageKey(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
