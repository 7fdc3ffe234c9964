package embedding

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteConfig configures a RemoteProvider against any OpenAI-compatible
// embeddings endpoint (Upstage Solar, vLLM's OpenAI-compatible server, or
// OpenAI itself all share this request/response shape in the reference
// implementation).
type RemoteConfig struct {
	Name      string
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// RemoteProvider calls a remote HTTP embeddings endpoint.
type RemoteProvider struct {
	cfg    RemoteConfig
	client *resty.Client
}

// NewRemoteProvider constructs a RemoteProvider with a bounded-timeout
// resty client, matching the 60s client timeout the Python reference uses
// per-request via httpx.AsyncClient(timeout=60.0).
func NewRemoteProvider(cfg RemoteConfig) *RemoteProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := resty.New().SetTimeout(cfg.Timeout).SetBaseURL(cfg.BaseURL)
	return &RemoteProvider{cfg: cfg, client: client}
}

func (p *RemoteProvider) Name() string   { return p.cfg.Name }
func (p *RemoteProvider) Dimension() int { return p.cfg.Dimension }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Data []embeddingDatum `json:"data"`
}

// Embed posts texts to the configured endpoint's /embeddings route and
// re-orders the response by index, matching the reference's
// `sorted(data["data"], key=lambda x: x["index"])`.
func (p *RemoteProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result embeddingResponse
	req := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(embeddingRequest{Model: p.cfg.Model, Input: texts}).
		SetResult(&result)
	if p.cfg.APIKey != "" {
		req.SetAuthToken(p.cfg.APIKey)
	}

	resp, err := req.Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding provider %q request: %w", p.cfg.Name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding provider %q returned %s", p.cfg.Name, resp.Status())
	}

	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })
	vecs := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		vecs[i] = d.Embedding
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding provider %q returned no vectors", p.cfg.Name)
	}
	return vecs, nil
}
