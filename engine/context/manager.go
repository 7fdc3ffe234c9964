package context

import (
	"context"
	"time"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/llm"
	"github.com/wanderlyst/agentcore/engine/tokens"
)

// SummaryDelimiterStart and SummaryDelimiterEnd wrap the injected summary so
// downstream prompt assembly can recognize and strip it if needed.
const (
	SummaryDelimiterStart = "[Previous conversation summary]"
	SummaryDelimiterEnd   = "[End of summary]"
)

// Config holds the Manager's trim thresholds.
type Config struct {
	SoftLimitTokens uint
	HardLimitTokens uint
	KeepRecent      int
}

// DefaultConfig mirrors spec §6 defaults (soft 6000, hard 8000, 20 recent).
func DefaultConfig() Config {
	return Config{SoftLimitTokens: 6000, HardLimitTokens: 8000, KeepRecent: DefaultKeepRecent}
}

// Result is the state returned by a full Process pass (spec §4.F: "{new_messages,
// removed_count, summary_token_count, summarization_performed|failed}").
type Result struct {
	Messages               []core.Message
	RemovedCount           int
	SummaryTokenCount      uint
	SummarizationPerformed bool
	SummarizationFailed    bool
	ContextTokenCount      uint
}

// EventFunc is invoked when every summarization strategy fails, so a caller
// can emit the SUMMARIZATION_FALLBACK observer event without this package
// depending on the observer package directly.
type EventFunc func(ctx context.Context, removedCount int)

// Manager trims and summarizes a thread's message list per turn.
type Manager struct {
	accountant *tokens.Accountant
	summarizer llm.Client
	config     Config
	onFallback EventFunc
}

// New constructs a Manager. summarizer may be nil, in which case the LLM
// and reduced-LLM strategies are skipped and the chain starts at extractive.
func New(accountant *tokens.Accountant, summarizer llm.Client, cfg Config, onFallback EventFunc) *Manager {
	if cfg.SoftLimitTokens == 0 {
		cfg = DefaultConfig()
	}
	return &Manager{accountant: accountant, summarizer: summarizer, config: cfg, onFallback: onFallback}
}

// Process runs the trim pass and, if messages were evicted, the
// summarization fallback chain, injecting the resulting summary as a
// synthetic system message immediately after any existing system messages.
func (m *Manager) Process(ctx context.Context, messages []core.Message) Result {
	trimmed := Trim(m.accountant, messages, m.config.SoftLimitTokens, m.config.HardLimitTokens, m.config.KeepRecent)

	result := Result{
		Messages:          trimmed.Messages,
		RemovedCount:      len(trimmed.Removed),
		ContextTokenCount: trimmed.TokenCountAfter,
	}
	if len(trimmed.Removed) == 0 {
		return result
	}

	summary := summarizeWithFallback(ctx, m.summarizer, trimmed.Removed)
	if summary == "" {
		result.SummarizationFailed = true
		result.Messages = messages
		result.ContextTokenCount = trimmed.TokenCountBefore
		if m.onFallback != nil {
			m.onFallback(ctx, len(trimmed.Removed))
		}
		return result
	}

	result.Messages = inject(trimmed.Messages, summary)
	result.SummarizationPerformed = true
	result.SummaryTokenCount = m.accountant.Count(summary)
	result.ContextTokenCount = m.accountant.CountMessages(result.Messages)
	return result
}

// inject wraps summary as a synthetic system message and inserts it
// immediately after the existing system messages, before the conversation.
func inject(messages []core.Message, summary string) []core.Message {
	system, conversation := splitSystem(messages)
	summaryMessage := core.Message{
		Role:      core.RoleSystem,
		Content:   SummaryDelimiterStart + "\n" + summary + "\n" + SummaryDelimiterEnd,
		CreatedAt: injectedAt(),
	}
	out := make([]core.Message, 0, len(system)+1+len(conversation))
	out = append(out, system...)
	out = append(out, summaryMessage)
	out = append(out, conversation...)
	return out
}

// injectedAt stamps the synthetic summary message with the current UTC time.
func injectedAt() time.Time {
	return time.Now().UTC()
}
