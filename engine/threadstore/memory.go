// Package threadstore implements core.Store, the Thread state persistence
// contract (spec §3 "Thread state... created on first use and mutated only
// while its lock is held"). Grounded on engine/memory/store's
// filesystem/Postgres split: an in-memory implementation for tests and
// single-process dev deployments, and a Postgres-backed implementation for
// production, storing each Thread as one JSONB row the way
// original_source's metadata_store.py persists turn-level state in
// Postgres rather than in the vector store.
package threadstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/wanderlyst/agentcore/engine/core"
)

// InMemoryStore is a mutex-guarded map keyed by thread ID. Thread values
// are deep-copied via JSON round-trip on Load/Save so callers can't
// mutate stored state without going through Save.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[core.ID]*core.Thread
}

// NewInMemoryStore builds an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[core.ID]*core.Thread)}
}

func cloneThread(t *core.Thread) (*core.Thread, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var clone core.Thread
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// Load returns a deep copy of the stored thread, or (nil, false, nil) if
// it doesn't exist.
func (s *InMemoryStore) Load(_ context.Context, id core.ID) (*core.Thread, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, false, nil
	}
	clone, err := cloneThread(t)
	if err != nil {
		return nil, false, err
	}
	return clone, true, nil
}

// Save overwrites the stored thread with a deep copy of thread.
func (s *InMemoryStore) Save(_ context.Context, thread *core.Thread) error {
	clone, err := cloneThread(thread)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread.ID] = clone
	return nil
}

// Append records m on id's thread, creating the thread if it doesn't
// exist yet (spec §3: "A thread is created on first use").
func (s *InMemoryStore) Append(_ context.Context, id core.ID, m core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		t = core.NewThread(id, "")
		s.threads[id] = t
	}
	t.Append(m)
	return nil
}

// Delete removes id's thread, if any.
func (s *InMemoryStore) Delete(_ context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, id)
	return nil
}

// ListByUser returns userID's threads, newest-appended-message first,
// paginated by limit/offset.
func (s *InMemoryStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]*core.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*core.Thread
	for _, t := range s.threads {
		if t.UserID == userID {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return latestTimestamp(matched[i]).After(latestTimestamp(matched[j]))
	})

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	out := make([]*core.Thread, 0, end-offset)
	for _, t := range matched[offset:end] {
		clone, err := cloneThread(t)
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	return out, nil
}

func latestTimestamp(t *core.Thread) time.Time {
	if len(t.Messages) == 0 {
		return time.Time{}
	}
	return t.Messages[len(t.Messages)-1].CreatedAt
}

var _ core.Store = (*InMemoryStore)(nil)
