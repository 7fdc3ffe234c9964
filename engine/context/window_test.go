package context

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/tokens"
)

var windowTestNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func buildMessages(n int, wordsPerMessage int) []core.Message {
	word := "word "
	content := ""
	for i := 0; i < wordsPerMessage; i++ {
		content += word
	}
	messages := make([]core.Message, 0, n)
	for i := 0; i < n; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		messages = append(messages, core.NewMessage(role, content, windowTestNow))
	}
	return messages
}

func TestTrim(t *testing.T) {
	acct := tokens.New()

	t.Run("Should return messages unchanged when under the soft limit", func(t *testing.T) {
		messages := buildMessages(4, 5)
		result := Trim(acct, messages, 6000, 8000, DefaultKeepRecent)
		assert.Equal(t, messages, result.Messages)
		assert.False(t, result.NeedsSummarization)
		assert.Empty(t, result.Removed)
	})

	t.Run("Should leave messages unchanged when fewer than keep_recent exist, even over soft limit", func(t *testing.T) {
		system := []core.Message{core.NewMessage(core.RoleSystem, "be helpful", windowTestNow)}
		conversation := buildMessages(5, 400)
		messages := append(system, conversation...)
		result := Trim(acct, messages, 10, 100000, 20)
		assert.Equal(t, messages, result.Messages)
		assert.Empty(t, result.Removed)
	})

	t.Run("Should evict oldest conversation messages beyond the recent tail when over soft limit", func(t *testing.T) {
		system := []core.Message{core.NewMessage(core.RoleSystem, "system prompt", windowTestNow)}
		conversation := buildMessages(60, 40)
		messages := append(system, conversation...)

		result := Trim(acct, messages, 1500, 3000, 20)

		require.NotEmpty(t, result.Removed)
		assert.True(t, result.NeedsSummarization)
		assert.Less(t, result.TokenCountAfter, result.TokenCountBefore)

		recentTail := conversation[len(conversation)-20:]
		gotTail := result.Messages[len(result.Messages)-20:]
		assert.Equal(t, recentTail, gotTail)

		assert.Equal(t, core.RoleSystem, result.Messages[0].Role)
	})

	t.Run("Should keep newest-first ordering when walking older messages for eviction", func(t *testing.T) {
		conversation := buildMessages(30, 300)
		result := Trim(acct, conversation, 2000, 5000, 20)
		require.NotEmpty(t, result.Removed)
		// Removed messages must be a contiguous oldest-first prefix of the
		// pre-tail conversation.
		older := conversation[:len(conversation)-20]
		assert.Equal(t, older[:len(result.Removed)], result.Removed)
	})
}
