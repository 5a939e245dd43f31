package agents

import (
	"strings"
	"sync"
)

// MemoryEntry is one remembered line of conversation.
type MemoryEntry struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// ShortTermMemory is an append-only list of recent exchanges, recalled by
// the responder's memory tool. It survives restarts inside the team snapshot.
type ShortTermMemory struct {
	mu      sync.RWMutex
	entries []MemoryEntry
	limit   int
}

// DefaultMemoryLimit bounds how many entries are kept.
const DefaultMemoryLimit = 200

func NewShortTermMemory() *ShortTermMemory {
	return &ShortTermMemory{limit: DefaultMemoryLimit}
}

func (m *ShortTermMemory) Add(speaker, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, MemoryEntry{Speaker: speaker, Content: content})
	if len(m.entries) > m.limit {
		m.entries = append([]MemoryEntry(nil), m.entries[len(m.entries)-m.limit:]...)
	}
}

// Entries returns a copy of everything remembered, oldest first.
func (m *ShortTermMemory) Entries() []MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MemoryEntry(nil), m.entries...)
}

// Replace swaps the contents, used when restoring a snapshot.
func (m *ShortTermMemory) Replace(entries []MemoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]MemoryEntry(nil), entries...)
}

// Recent returns the last n entries.
func (m *ShortTermMemory) Recent(n int) []MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n > len(m.entries) {
		n = len(m.entries)
	}
	return append([]MemoryEntry(nil), m.entries[len(m.entries)-n:]...)
}

// Search returns the newest entry containing query, case-insensitively.
func (m *ShortTermMemory) Search(query string) (MemoryEntry, bool) {
	q := strings.ToLower(query)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(m.entries[i].Content), q) {
			return m.entries[i], true
		}
	}
	return MemoryEntry{}, false
}

func (m *ShortTermMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
