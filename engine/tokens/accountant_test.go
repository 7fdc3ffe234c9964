package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wanderlyst/agentcore/engine/core"
)

var testNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAccountant_Count(t *testing.T) {
	a := New()

	t.Run("Should return a positive count for non-empty text", func(t *testing.T) {
		assert.Greater(t, a.Count("hello world, this is a travel question"), uint(0))
	})

	t.Run("Should return zero for empty text", func(t *testing.T) {
		assert.Equal(t, uint(0), a.Count(""))
	})

	t.Run("Should be stable across repeated calls (memoized)", func(t *testing.T) {
		text := "Gyeongbokgung Palace is a popular attraction in Seoul"
		first := a.Count(text)
		second := a.Count(text)
		assert.Equal(t, first, second)
	})
}

func TestAccountant_CountMessages(t *testing.T) {
	a := New()

	t.Run("Should sum content counts plus per-message overhead", func(t *testing.T) {
		messages := []core.Message{
			core.NewMessage(core.RoleUser, "Hi there", testNow),
			core.NewMessage(core.RoleAssistant, "Hello! How can I help?", testNow),
		}
		total := a.CountMessages(messages)
		expectedFloor := a.Count(messages[0].Content) + a.Count(messages[1].Content) + 2*PerMessageOverhead
		assert.Equal(t, expectedFloor, total)
	})
}

func TestAccountant_BudgetCheck(t *testing.T) {
	a := New()

	t.Run("Should report within soft and hard limits for short input", func(t *testing.T) {
		messages := []core.Message{core.NewMessage(core.RoleUser, "short message", testNow)}
		budget := a.BudgetCheck(messages, 6000, 8000)
		assert.True(t, budget.WithinSoft)
		assert.True(t, budget.WithinHard)
		assert.Less(t, budget.Utilization, 1.0)
	})

	t.Run("Should report over soft but within hard for medium input", func(t *testing.T) {
		longText := make([]byte, 0, 30000)
		for i := 0; i < 6000; i++ {
			longText = append(longText, []byte("word ")...)
		}
		messages := []core.Message{core.NewMessage(core.RoleUser, string(longText), testNow)}
		budget := a.BudgetCheck(messages, 10, 100000)
		assert.False(t, budget.WithinSoft)
		assert.True(t, budget.WithinHard)
	})
}
