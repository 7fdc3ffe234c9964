// Package memory implements the Memory Pipeline (spec §4.G): an embedding
// provider chain feeding a vector store, a retrieval ranking algorithm, and
// turn write-back, grounded on original_source's
// src/services/memory/memory_store.py and apps/api/.../embeddings.py.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/memory/embedding"
	"github.com/wanderlyst/agentcore/engine/memory/extract"
	"github.com/wanderlyst/agentcore/engine/memory/store"
)

const turnSummaryCharCap = 500

// Pipeline ties the embedding chain, vector store, and entity extractor
// together to write back completed turns and serve retrieval requests.
type Pipeline struct {
	embeddings *embedding.Chain
	store      store.Store
	collection store.Collection
}

// NewPipeline builds a Pipeline writing into the given collection.
func NewPipeline(embeddings *embedding.Chain, s store.Store, collection store.Collection) *Pipeline {
	return &Pipeline{embeddings: embeddings, store: s, collection: collection}
}

// WriteTurn stores a completed turn (spec §4.G "Turn write-back"): one
// Conversation memory summarizing the exchange, plus one Entity memory per
// extracted entity, all embedded in a single batched call.
func (p *Pipeline) WriteTurn(
	ctx context.Context,
	userID, threadID string,
	userMessage, assistantMessage string,
) error {
	conversationContent := formatConversationMemory(userMessage, assistantMessage)
	entities := extract.FromTurn(userMessage, assistantMessage)

	texts := make([]string, 0, 1+len(entities))
	texts = append(texts, conversationContent)
	for _, e := range entities {
		texts = append(texts, e.String())
	}

	vectors, err := p.embeddings.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed turn write-back: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding chain returned %d vectors for %d inputs", len(vectors), len(texts))
	}

	now := time.Now().UTC()
	records := make([]store.Record, 0, len(texts))

	conversationID, err := core.NewID()
	if err != nil {
		return fmt.Errorf("generate conversation memory id: %w", err)
	}
	records = append(records, store.Record{
		ID:         conversationID.String(),
		Content:    conversationContent,
		MemoryType: string(core.MemoryConversation),
		UserID:     userID,
		ThreadID:   threadID,
		Vector:     vectors[0],
		CreatedAt:  now,
	})

	for i, e := range entities {
		entityID, err := core.NewID()
		if err != nil {
			return fmt.Errorf("generate entity memory id: %w", err)
		}
		records = append(records, store.Record{
			ID:         entityID.String(),
			Content:    e.String(),
			MemoryType: string(core.MemoryEntity),
			UserID:     userID,
			ThreadID:   threadID,
			Metadata:   map[string]any{"entity_type": e.Type, "entity_value": e.Value},
			Vector:     vectors[i+1],
			CreatedAt:  now,
		})
	}

	if err := p.store.Upsert(ctx, p.collection, records); err != nil {
		return fmt.Errorf("upsert turn write-back: %w", err)
	}
	return nil
}

// formatConversationMemory renders the "User asked: ...\nAssistant
// responded: ..." summary, each half clipped to the spec's 500-character
// cap.
func formatConversationMemory(userMessage, assistantMessage string) string {
	return fmt.Sprintf(
		"User asked: %s\nAssistant responded: %s",
		clipText(userMessage, turnSummaryCharCap),
		clipText(assistantMessage, turnSummaryCharCap),
	)
}

func clipText(s string, maxLen int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxLen {
		return string(r)
	}
	return string(r[:maxLen])
}
