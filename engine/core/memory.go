package core

import "time"

// MemoryType is the closed set of kinds a stored Memory may have.
type MemoryType string

const (
	MemoryConversation MemoryType = "conversation"
	MemoryPreference   MemoryType = "preference"
	MemoryPlace        MemoryType = "place"
	MemoryItinerary    MemoryType = "itinerary"
	MemoryFeedback     MemoryType = "feedback"
	MemoryEntity       MemoryType = "entity"
)

// Memory is a single retrievable unit in the memory pipeline's vector store.
// Embedding is populated by the embedding provider chain before storage; its
// length must equal the owning collection's frozen dimension.
type Memory struct {
	MemoryID  string         `json:"memory_id"`
	Content   string         `json:"content"`
	Type      MemoryType     `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Embedding []float32      `json:"-"`

	// Score is populated on search results only; it is not part of the
	// stored record.
	Score float64 `json:"score,omitempty"`
}
