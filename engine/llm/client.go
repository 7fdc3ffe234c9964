// Package llm defines the contract the middleware core uses to reach the
// external LLM service. The pipeline (agent turns, context summarization)
// depends only on this interface; HTTPClient (http_client.go) is the
// HTTP-backed implementation, and RetryingClient adds retry and circuit
// breaker protection around any Client.
package llm

import "context"

// Request is a single completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Message is the wire-level chat message shape the LLM client exchanges,
// kept distinct from engine/core.Message so the domain model doesn't leak
// provider-specific framing.
type Message struct {
	Role    string
	Content string
}

// Response is a single completion response.
type Response struct {
	Content      string
	InputTokens  uint
	OutputTokens uint
}

// Client is the contract for invoking the LLM service.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
