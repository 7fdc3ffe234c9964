package context

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/llm"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

// summarizationPrompt mirrors the original_source SUMMARIZATION_PROMPT
// template, asking for a concise, information-preserving summary.
const summarizationPrompt = `Summarize the following conversation concisely, preserving key information:
- User's travel plans and preferences
- Important places, dates, and times mentioned
- Any specific requests or constraints
- Decisions made during the conversation

Keep the summary under 500 words. Focus on actionable information.

Conversation to summarize:
%s

Summary:`

// extractiveKeywords is the fixed keyword set used by the extractive
// fallback, ported verbatim from EXTRACTIVE_KEYWORDS.
var extractiveKeywords = []string{
	"want", "need", "prefer", "like", "visit", "go", "travel",
	"hotel", "restaurant", "food", "museum", "palace", "temple",
	"subway", "bus", "taxi", "walk",
	"morning", "afternoon", "evening", "night",
	"budget", "cheap", "expensive", "luxury",
	"day", "days", "week", "hour", "hours",
	"seoul", "busan", "jeju", "incheon", "gyeongju",
}

const (
	minViableSummaryLen  = 50
	llmSummaryCharCap    = 12000
	llmSummarizeMaxChars = 4000 // rough token->char budget before the cap kicks in
	truncationCharCap    = 100
	extractiveCharCap    = 200
	extractiveMaxLines   = 10
)

// summarizeDeadline bounds a single LLM summarization attempt.
var summarizeDeadline = 30 * time.Second

// summarizeWithFallback runs the four-strategy fallback chain over the
// evicted message list, stopping at the first strategy that produces a
// usable summary. It never returns an error: callers treat an empty string as
// "all strategies failed".
func summarizeWithFallback(ctx context.Context, client llm.Client, removed []core.Message) string {
	log := logger.FromContext(ctx)

	if summary := llmSummarize(ctx, client, removed); summary != "" {
		log.Debug("llm summarization succeeded")
		return summary
	}

	if len(removed) > 1 {
		reduced := removed[len(removed)/2:]
		if summary := llmSummarize(ctx, client, reduced); summary != "" {
			log.Debug("reduced llm summarization succeeded")
			return "[Partial summary — earlier context omitted]\n" + summary
		}
	}

	if summary := extractiveSummarize(removed); summary != "" {
		log.Debug("extractive summarization succeeded")
		return summary
	}

	if summary := truncationFallback(removed); summary != "" {
		log.Debug("truncation fallback used")
		return summary
	}

	log.Warn("all summarization strategies failed")
	return ""
}

func llmSummarize(ctx context.Context, client llm.Client, messages []core.Message) string {
	if client == nil {
		return ""
	}
	text := formatForSummary(messages)
	if text == "" {
		return ""
	}
	if len(text) > llmSummaryCharCap {
		text = text[:llmSummaryCharCap]
	}
	prompt := fmt.Sprintf(summarizationPrompt, text)

	callCtx, cancel := context.WithTimeout(ctx, summarizeDeadline)
	defer cancel()

	resp, err := client.Complete(callCtx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil || resp == nil {
		return ""
	}
	summary := strings.TrimSpace(resp.Content)
	if len(summary) < minViableSummaryLen {
		return ""
	}
	return summary
}

func formatForSummary(messages []core.Message) string {
	var lines []string
	for _, m := range messages {
		switch m.Role {
		case core.RoleUser:
			lines = append(lines, "User: "+m.Content)
		case core.RoleAssistant:
			lines = append(lines, "Assistant: "+m.Content)
		case core.RoleSystem:
			continue
		default:
			lines = append(lines, "Message: "+m.Content)
		}
	}
	return strings.Join(lines, "\n\n")
}

func extractiveSummarize(messages []core.Message) string {
	var important []string
	for _, m := range messages {
		lower := strings.ToLower(m.Content)
		count := 0
		for _, kw := range extractiveKeywords {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count < 2 && m.Role != core.RoleUser {
			continue
		}
		content := m.Content
		if len(content) > extractiveCharCap {
			content = content[:extractiveCharCap] + "..."
		}
		role := "Assistant"
		if m.Role == core.RoleUser {
			role = "User"
		}
		important = append(important, fmt.Sprintf("- %s: %s", role, content))
	}
	if len(important) == 0 {
		return ""
	}
	if len(important) > extractiveMaxLines {
		important = important[len(important)-extractiveMaxLines:]
	}
	return "Key points from previous conversation:\n" + strings.Join(important, "\n")
}

func truncationFallback(messages []core.Message) string {
	const minForTruncation = 4
	if len(messages) <= minForTruncation {
		return ""
	}
	first := messages[:2]
	last := messages[len(messages)-2:]

	var parts []string
	for _, m := range first {
		parts = append(parts, fmt.Sprintf("%s: %s...", roleLabel(m), clip(m.Content, truncationCharCap)))
	}
	parts = append(parts, fmt.Sprintf("[... %d messages omitted ...]", len(messages)-minForTruncation))
	for _, m := range last {
		parts = append(parts, fmt.Sprintf("%s: %s...", roleLabel(m), clip(m.Content, truncationCharCap)))
	}
	return strings.Join(parts, "\n")
}

func roleLabel(m core.Message) string {
	if m.Role == core.RoleUser {
		return "User"
	}
	return "Assistant"
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
