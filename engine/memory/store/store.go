// Package store implements the Memory Pipeline's vector collection (spec
// §4.G): per-memory payload keyed by content/type/user/thread/created_at,
// scalar filters on user_id/thread_id/memory_type, and the
// store/search/list/delete operation set, backed by either Postgres+pgvector
// or an in-memory/filesystem brute-force index.
//
// Grounded on original_source's src/services/memory/memory_store.py
// (MemoryStore over Qdrant): the same CRUD surface and payload shape, since
// no Go Qdrant client appears anywhere in the teacher's or pack's dependency
// graph (see DESIGN.md's "Qdrant vector store option: dropped"). The
// Postgres path is grounded on the teacher's engine/auth/*/postgres_repository.go
// style (DBInterface + squirrel query builder + scany row scanning).
package store

import (
	"context"
	"math"
	"time"
)

// Record is a single stored memory with its vector.
type Record struct {
	ID         string
	Content    string
	MemoryType string
	UserID     string
	ThreadID   string
	Metadata   map[string]any
	Vector     []float32
	CreatedAt  time.Time
}

// SearchFilters narrows a similarity search to a subset of records.
type SearchFilters struct {
	UserID     string
	ThreadID   string
	MemoryType string
}

// SearchResult is a Record annotated with its similarity score against the
// query vector.
type SearchResult struct {
	Record
	Score float64
}

// Collection is a named vector collection with a frozen dimension (spec
// §4.G: "Two logical collections... each has its own dimension frozen at
// creation").
type Collection string

const (
	CollectionConversation Collection = "conversation"
	CollectionDomain       Collection = "domain"
)

// Store is the vector collection CRUD + search contract.
type Store interface {
	Upsert(ctx context.Context, collection Collection, records []Record) error
	Search(ctx context.Context, collection Collection, query []float32, filters SearchFilters, limit int, scoreThreshold float64) ([]SearchResult, error)
	ListByUser(ctx context.Context, collection Collection, userID string, memoryTypes []string, limit int) ([]Record, error)
	DeleteByID(ctx context.Context, collection Collection, id string) error
	DeleteByUser(ctx context.Context, collection Collection, userID string) (int, error)
	DeleteByThread(ctx context.Context, collection Collection, threadID string) (int, error)
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, returning 0 if either is a zero vector.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
