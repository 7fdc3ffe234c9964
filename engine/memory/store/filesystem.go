package store

import (
	"context"
	"sort"
	"sync"
)

// FilesystemStore is an in-process, brute-force Store: every collection is
// held in memory and searched by a linear cosine-similarity scan. It exists
// for local development and tests where standing up Postgres+pgvector is
// unnecessary overhead — the "filesystem" name (rather than "memory store",
// which would collide with the domain concept) follows the spec's own
// collection-agnostic framing and the teacher's convention of naming
// lightweight stand-ins after their storage medium (see
// engine/cache/miniredis_standalone.go's embedded-Redis-for-tests role).
type FilesystemStore struct {
	mu   sync.RWMutex
	data map[Collection]map[string]Record
}

// NewFilesystemStore constructs an empty FilesystemStore.
func NewFilesystemStore() *FilesystemStore {
	return &FilesystemStore{data: make(map[Collection]map[string]Record)}
}

func (s *FilesystemStore) bucket(c Collection) map[string]Record {
	if s.data[c] == nil {
		s.data[c] = make(map[string]Record)
	}
	return s.data[c]
}

func (s *FilesystemStore) Upsert(_ context.Context, collection Collection, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(collection)
	for _, r := range records {
		bucket[r.ID] = r
	}
	return nil
}

func (s *FilesystemStore) Search(
	_ context.Context,
	collection Collection,
	query []float32,
	filters SearchFilters,
	limit int,
	scoreThreshold float64,
) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, r := range s.bucket(collection) {
		if !matches(r, filters) {
			continue
		}
		score := CosineSimilarity(query, r.Vector)
		if score < scoreThreshold {
			continue
		}
		results = append(results, SearchResult{Record: r, Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *FilesystemStore) ListByUser(
	_ context.Context,
	collection Collection,
	userID string,
	memoryTypes []string,
	limit int,
) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeSet := make(map[string]bool, len(memoryTypes))
	for _, t := range memoryTypes {
		typeSet[t] = true
	}

	var results []Record
	for _, r := range s.bucket(collection) {
		if r.UserID != userID {
			continue
		}
		if len(typeSet) > 0 && !typeSet[r.MemoryType] {
			continue
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *FilesystemStore) DeleteByID(_ context.Context, collection Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bucket(collection), id)
	return nil
}

func (s *FilesystemStore) DeleteByUser(_ context.Context, collection Collection, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(collection)
	count := 0
	for id, r := range bucket {
		if r.UserID == userID {
			delete(bucket, id)
			count++
		}
	}
	return count, nil
}

func (s *FilesystemStore) DeleteByThread(_ context.Context, collection Collection, threadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(collection)
	count := 0
	for id, r := range bucket {
		if r.ThreadID == threadID {
			delete(bucket, id)
			count++
		}
	}
	return count, nil
}

func matches(r Record, f SearchFilters) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.ThreadID != "" && r.ThreadID != f.ThreadID {
		return false
	}
	if f.MemoryType != "" && r.MemoryType != f.MemoryType {
		return false
	}
	return true
}

var _ Store = (*FilesystemStore)(nil)
