package core

import "context"

// ThreadStage is the closed set of conversation stages a Thread progresses
// through over its lifetime.
type ThreadStage string

const (
	StageInit          ThreadStage = "init"
	StageInvestigation ThreadStage = "investigation"
	StagePlanning      ThreadStage = "planning"
	StageResolution    ThreadStage = "resolution"
)

// Thread is the per-conversation state mutated only while its conversation
// lock (engine/lock) is held. Message order is the single source of truth;
// TotalTokens and Stage are caches recomputed within the same locked section
// that appended the message that invalidated them.
type Thread struct {
	ID          ID            `json:"id"`
	UserID      string        `json:"user_id,omitempty"`
	Messages    []Message     `json:"messages"`
	Stage       ThreadStage   `json:"stage"`
	TurnCount   int           `json:"turn_count"`
	LastTurn    *TurnMetadata `json:"last_turn,omitempty"`
	Preferences Preferences   `json:"preferences"`
	Summary     string        `json:"summary,omitempty"`
	TotalTokens uint          `json:"total_tokens"`
}

// NewThread returns an empty Thread in StageInit, owned by userID.
func NewThread(id ID, userID string) *Thread {
	return &Thread{ID: id, UserID: userID, Stage: StageInit}
}

// Append records m as the newest message and bumps the turn count when m is
// a user message (one user message starts a new turn).
func (t *Thread) Append(m Message) {
	t.Messages = append(t.Messages, m)
	if m.Role == RoleUser {
		t.TurnCount++
	}
}

// Store is the persistence contract for Thread state. Out of scope for this
// module are migrations and a concrete relational driver; a caller supplies
// an implementation (in-memory for tests, a real store in production).
type Store interface {
	Load(ctx context.Context, id ID) (*Thread, bool, error)
	Save(ctx context.Context, thread *Thread) error
	Append(ctx context.Context, id ID, m Message) error
	Delete(ctx context.Context, id ID) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Thread, error)
}
