package context

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/llm"
)

type stubLLM struct {
	response *llm.Response
	err      error
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func travelMessages(n int) []core.Message {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	messages := make([]core.Message, 0, n)
	for i := 0; i < n; i++ {
		role := core.RoleUser
		content := "I want to visit a palace in Seoul this morning on a budget"
		if i%2 == 1 {
			role = core.RoleAssistant
			content = "Sure, here is a suggestion for your trip"
		}
		messages = append(messages, core.NewMessage(role, content, now))
	}
	return messages
}

func TestSummarizeWithFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("Should use the LLM summary when it succeeds and meets the minimum length", func(t *testing.T) {
		client := &stubLLM{response: &llm.Response{Content: strings.Repeat("a concise travel summary ", 5)}}
		summary := summarizeWithFallback(ctx, client, travelMessages(10))
		assert.NotEmpty(t, summary)
		assert.NotContains(t, summary, "Key points from previous conversation")
	})

	t.Run("Should fall through to extractive summarization when the LLM always errors", func(t *testing.T) {
		client := &stubLLM{err: errors.New("upstream down")}
		summary := summarizeWithFallback(ctx, client, travelMessages(10))
		require.NotEmpty(t, summary)
		assert.Contains(t, summary, "Key points from previous conversation")
	})

	t.Run("Should fall through to truncation when extractive finds nothing and no client is set", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		messages := []core.Message{
			core.NewMessage(core.RoleAssistant, "xyz", now),
			core.NewMessage(core.RoleAssistant, "abc", now),
			core.NewMessage(core.RoleAssistant, "def", now),
			core.NewMessage(core.RoleAssistant, "ghi", now),
			core.NewMessage(core.RoleAssistant, "jkl", now),
		}
		summary := summarizeWithFallback(ctx, nil, messages)
		require.NotEmpty(t, summary)
		assert.Contains(t, summary, "messages omitted")
	})

	t.Run("Should return empty when every strategy fails", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		messages := []core.Message{
			core.NewMessage(core.RoleAssistant, "xyz", now),
			core.NewMessage(core.RoleAssistant, "abc", now),
		}
		summary := summarizeWithFallback(ctx, nil, messages)
		assert.Empty(t, summary)
	})
}

func TestExtractiveSummarize(t *testing.T) {
	t.Run("Should cap to the 10 most recent qualifying lines", func(t *testing.T) {
		messages := travelMessages(30)
		summary := extractiveSummarize(messages)
		lines := strings.Split(summary, "\n")
		// minus the "Key points..." header line
		assert.LessOrEqual(t, len(lines)-1, extractiveMaxLines)
	})
}

func TestTruncationFallback(t *testing.T) {
	t.Run("Should return empty for 4 or fewer messages", func(t *testing.T) {
		messages := travelMessages(4)
		assert.Empty(t, truncationFallback(messages))
	})

	t.Run("Should report the correct omitted count", func(t *testing.T) {
		messages := travelMessages(10)
		summary := truncationFallback(messages)
		assert.Contains(t, summary, "[... 6 messages omitted ...]")
	})
}
