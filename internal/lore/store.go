// Package lore keeps background story text for a persona and answers
// relevance queries over it.
package lore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	// DefaultK is the number of snippets a query returns at most.
	DefaultK = 3
	// DefaultScoreThreshold drops snippets scoring below it.
	DefaultScoreThreshold = 0.4
)

// Result is one ranked snippet.
type Result struct {
	Content  string
	Score    float64
	Metadata map[string]string
}

// Memory is the lore capability a session uses.
type Memory interface {
	Add(ctx context.Context, content string, metadata map[string]string) error
	Query(ctx context.Context, query string) ([]Result, error)
	Close() error
}

// SQLiteStore persists chunks in SQLite, one collection per persona, and
// ranks them by cosine similarity of term-frequency vectors.
type SQLiteStore struct {
	db         *sql.DB
	collection string
	k          int
	threshold  float64
	logger     *slog.Logger
}

var _ Memory = (*SQLiteStore)(nil)

// Open opens the database at path, applies the schema, and scopes the store
// to collection.
func Open(ctx context.Context, path, collection string, logger *slog.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("lore path is required")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("lore collection is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{
		db:         db,
		collection: collection,
		k:          DefaultK,
		threshold:  DefaultScoreThreshold,
		logger:     logger,
	}, nil
}

// Migrate creates the lore schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lore_chunks (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			source TEXT NULL,
			chunk_index INTEGER NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(collection, source, chunk_index)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create lore_chunks: %w", err)
	}
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS lore_chunks_collection ON lore_chunks(collection);`)
	if err != nil {
		return fmt.Errorf("migrate: create lore_chunks index: %w", err)
	}
	return nil
}

// Collection returns the scope this store reads and writes.
func (s *SQLiteStore) Collection() string {
	return s.collection
}

// Add stores one chunk. A chunk with the same source and chunk_index
// metadata replaces the previous one, so re-ingesting a file is idempotent.
func (s *SQLiteStore) Add(ctx context.Context, content string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk metadata: %w", err)
	}

	var source sql.NullString
	if v, ok := metadata["source"]; ok {
		source = sql.NullString{String: v, Valid: true}
	}
	var index sql.NullInt64
	if v, ok := metadata["chunk_index"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			index = sql.NullInt64{Int64: n, Valid: true}
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lore_chunks (id, collection, source, chunk_index, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(collection, source, chunk_index) DO UPDATE SET
		   content = excluded.content,
		   metadata = excluded.metadata`,
		uuid.NewString(), s.collection, source, index, content, string(meta), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lore chunk: %w", err)
	}
	return nil
}

// Query returns up to k chunks of this collection scoring at least the
// threshold, best first.
func (s *SQLiteStore) Query(ctx context.Context, query string) ([]Result, error) {
	queryVec := termVector(query)
	if len(queryVec) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content, metadata FROM lore_chunks WHERE collection = ? ORDER BY created_at, chunk_index`,
		s.collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lore chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var content, meta string
		if err := rows.Scan(&content, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan lore chunk: %w", err)
		}
		score := cosineSimilarity(queryVec, termVector(content))
		if score < s.threshold {
			continue
		}
		var metadata map[string]string
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			s.logger.Warn("Skipping lore chunk metadata", "error", err)
		}
		results = append(results, Result{Content: content, Score: score, Metadata: metadata})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lore chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > s.k {
		results = results[:s.k]
	}
	return results, nil
}

// Count returns how many chunks the collection holds.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lore_chunks WHERE collection = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count lore chunks: %w", err)
	}
	return n, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func termVector(text string) map[string]float64 {
	vector := make(map[string]float64)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		vector[w]++
	}
	return vector
}

func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for term, weight := range a {
		dot += weight * b[term]
		normA += weight * weight
	}
	for _, weight := range b {
		normB += weight * weight
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
