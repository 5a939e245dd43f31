// Package storage persists NPC session records between connections.
package storage

import (
	"context"
	"sort"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/npc"
)

// HealthChecker defines health check capabilities
type HealthChecker interface {
	// Ping tests the backend connection
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities
type Closer interface {
	// Close closes the backend connection
	Close() error
}

// SessionStore saves one record per persona storage key.
type SessionStore interface {
	HealthChecker
	Closer

	// SaveRecord replaces the record stored under key
	SaveRecord(ctx context.Context, key string, rec *npc.Record) error

	// LoadRecord retrieves the record under key.
	// Returns nil if no record exists
	LoadRecord(ctx context.Context, key string) (*npc.Record, error)

	// DeleteRecord removes the record under key
	DeleteRecord(ctx context.Context, key string) error

	// ListRecords returns every readable record. Unreadable entries are
	// skipped and logged.
	ListRecords(ctx context.Context) ([]*npc.Record, error)
}

// UniquePersonas returns the personas of recs, first occurrence winning
// among names equal after trimming and lower-casing. Records without a
// name are dropped. The result is sorted by name.
func UniquePersonas(recs []*npc.Record) []npc.Persona {
	seen := make(map[string]bool, len(recs))
	out := make([]npc.Persona, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		name := strings.TrimSpace(rec.Persona.Name)
		if name == "" {
			continue
		}
		norm := strings.ToLower(name)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		p := rec.Persona
		p.Name = name
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
