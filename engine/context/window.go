// Package context implements the Context Window Manager (spec §4.F): a
// trim pass that evicts old conversation turns past a soft token limit
// while preserving a recent tail, and a graded summarization fallback for
// the evicted prefix.
//
// Grounded on the original_source Python reference
// (src/middleware/core/trimming.py, src/middleware/core/summarization.py):
// the trim walk, the keep_recent tail, and the four-strategy summarization
// fallback chain are ported with identical semantics. The ambient shape
// (struct + Process method returning an updated message list plus a state
// record) follows the teacher's engine/workflow middleware style of
// threading a mutable result object through a pipeline stage.
package context

import (
	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/tokens"
)

// DefaultKeepRecent is the number of trailing conversation messages the
// trim pass never evicts.
const DefaultKeepRecent = 20

// TrimResult is the outcome of a Trim pass.
type TrimResult struct {
	Messages           []core.Message
	Removed            []core.Message
	TokenCountBefore   uint
	TokenCountAfter    uint
	NeedsSummarization bool
}

// Trim evicts conversation messages past the soft token limit S, always
// preserving system messages and the last keepRecent conversation
// messages. Earlier messages are kept newest-first until the remaining
// budget is exhausted; the rest are evicted into Removed.
func Trim(acct *tokens.Accountant, messages []core.Message, soft, hard uint, keepRecent int) TrimResult {
	if keepRecent <= 0 {
		keepRecent = DefaultKeepRecent
	}
	total := acct.CountMessages(messages)
	if total <= soft {
		return TrimResult{Messages: messages, TokenCountBefore: total, TokenCountAfter: total}
	}

	system, conversation := splitSystem(messages)
	if len(conversation) <= keepRecent {
		return TrimResult{
			Messages:           messages,
			TokenCountBefore:   total,
			TokenCountAfter:    total,
			NeedsSummarization: total > hard,
		}
	}

	recentTail := conversation[len(conversation)-keepRecent:]
	older := conversation[:len(conversation)-keepRecent]

	budget := int(soft) - int(acct.CountMessages(system)) - int(acct.CountMessages(recentTail))

	var keptOlder []core.Message
	var removed []core.Message
	for i := len(older) - 1; i >= 0; i-- {
		msg := older[i]
		cost := int(acct.Count(msg.Content))
		if budget >= cost {
			keptOlder = append([]core.Message{msg}, keptOlder...)
			budget -= cost
		} else {
			removed = append([]core.Message{msg}, removed...)
		}
	}

	trimmed := make([]core.Message, 0, len(system)+len(keptOlder)+len(recentTail))
	trimmed = append(trimmed, system...)
	trimmed = append(trimmed, keptOlder...)
	trimmed = append(trimmed, recentTail...)

	after := acct.CountMessages(trimmed)
	return TrimResult{
		Messages:           trimmed,
		Removed:            removed,
		TokenCountBefore:   total,
		TokenCountAfter:    after,
		NeedsSummarization: len(removed) > 0,
	}
}

func splitSystem(messages []core.Message) (system, conversation []core.Message) {
	for _, m := range messages {
		if m.Role == core.RoleSystem {
			system = append(system, m)
		} else {
			conversation = append(conversation, m)
		}
	}
	return system, conversation
}
