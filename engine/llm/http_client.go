package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPConfig configures an HTTPClient against any OpenAI-compatible chat
// completions endpoint, the same "any OpenAI-compatible shape" assumption
// engine/memory/embedding.RemoteConfig makes for embeddings.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient is a minimal concrete Client the server binary wires up by
// default; the wire contract it speaks is out of scope for correctness
// beyond matching the documented request/response shape (spec §1: "the LLM
// client itself... contracts only"), so it is intentionally thin.
type HTTPClient struct {
	client *resty.Client
}

// NewHTTPClient builds an HTTPClient with a bounded-timeout resty client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().SetTimeout(timeout).SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPClient{client: client}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatCompletionChoice struct {
	Message Message `json:"message"`
}

type chatCompletionUsage struct {
	PromptTokens     uint `json:"prompt_tokens"`
	CompletionTokens uint `json:"completion_tokens"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
	Usage   chatCompletionUsage    `json:"usage"`
}

// Complete posts req to the configured endpoint's /chat/completions route.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	var result chatCompletionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(chatCompletionRequest{
			Model:       req.Model,
			Messages:    req.Messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		}).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("llm returned %s", resp.Status())
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}
	return &Response{
		Content:      result.Choices[0].Message.Content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}, nil
}
