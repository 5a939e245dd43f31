package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/jwebster45206/npc-engine/pkg/npc"
)

// MockStore is a mock implementation of SessionStore for testing
type MockStore struct {
	mu        sync.RWMutex
	records   map[string][]byte
	pingError error
	saveError error
	saveCalls int
}

// Ensure MockStore implements SessionStore interface
var _ SessionStore = (*MockStore)(nil)

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{records: make(map[string][]byte)}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on save with the given error
func (m *MockStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SaveCalls reports how many times SaveRecord was called
func (m *MockStore) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCalls
}

func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks store close
func (m *MockStore) Close() error {
	return nil
}

// SaveRecord stores a JSON copy so later mutation of rec is not observed
func (m *MockStore) SaveRecord(ctx context.Context, key string, rec *npc.Record) error {
	if rec == nil {
		return errors.New("record cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveError != nil {
		return m.saveError
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.records[key] = data
	return nil
}

func (m *MockStore) LoadRecord(ctx context.Context, key string) (*npc.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	var rec npc.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *MockStore) DeleteRecord(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MockStore) ListRecords(ctx context.Context) ([]*npc.Record, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	out := make([]*npc.Record, 0, len(keys))
	for _, k := range keys {
		rec, err := m.LoadRecord(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
