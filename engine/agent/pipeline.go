// Package agent composes the eight middleware components into the
// per-turn pipeline (spec §2's "Flow per user turn"): the Observer Bus
// brackets the turn with request_started/request_completed events, the
// Input Validator screens the raw message, the Rate Limiter checks the
// caller's budget, the Distributed Lock serializes the thread, the
// Context Window Manager keeps the prompt within budget, the Memory
// Pipeline retrieves and later stores relevant memories, and the LLM
// client (already breaker- and retry-wrapped by engine/llm) produces the
// reply. No single component owns this ordering — it exists only here,
// the way the teacher's engine/agent/router handlers compose its
// independently-testable services into one request-scoped flow.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/wanderlyst/agentcore/engine/breaker"
	"github.com/wanderlyst/agentcore/engine/cache"
	contextwindow "github.com/wanderlyst/agentcore/engine/context"
	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/llm"
	"github.com/wanderlyst/agentcore/engine/lock"
	"github.com/wanderlyst/agentcore/engine/memory"
	"github.com/wanderlyst/agentcore/engine/memory/embedding"
	"github.com/wanderlyst/agentcore/engine/memory/store"
	"github.com/wanderlyst/agentcore/engine/observer"
	"github.com/wanderlyst/agentcore/engine/ratelimit"
	"github.com/wanderlyst/agentcore/engine/tokens"
	"github.com/wanderlyst/agentcore/engine/tools"
	"github.com/wanderlyst/agentcore/engine/validator"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

// SystemPrompt is the default stage-agnostic system message prefixed to
// every composed request. Prompt-engineering authorship is a named
// non-goal, so this is deliberately minimal.
const SystemPrompt = "You are Wanderlyst, a helpful Korean-travel planning assistant."

// Request is one inbound chat turn.
type Request struct {
	UserID   string
	ThreadID string // empty creates a new thread
	Message  string
	Language string
	ClientIP string
}

// Result is what the pipeline hands back to the HTTP layer on success.
type Result struct {
	Response   string
	ThreadID   string
	TurnNumber int
	Stage      core.ThreadStage
	LatencyMS  int64
	Timestamp  int64
}

// Pipeline wires every middleware component together for one chat turn.
type Pipeline struct {
	Store          core.Store
	Validator      *validator.Validator
	RateLimiter    *ratelimit.Service
	Lock           *lock.ConversationLock
	ContextManager *contextwindow.Manager
	Ranker         *memory.Ranker
	MemoryPipeline *memory.Pipeline
	Embeddings     *embedding.Chain
	LLM            llm.Client
	Breakers       *breaker.Registry
	Accountant     *tokens.Accountant
	Observer       *observer.Producer
	Tools          *tools.Registry
	Model          string
	Temperature    float64
	MaxTokens      int
}

// Config bundles the constructor dependencies for New, mirroring the
// teacher's habit of a flat options struct for a service with many
// collaborators (see engine/agent's own wiring in the example pack).
type Config struct {
	Store          core.Store
	Redis          cache.RedisInterface
	Validator      *validator.Validator
	RateLimiter    *ratelimit.Service
	Lock           *lock.ConversationLock
	ContextManager *contextwindow.Manager
	Ranker         *memory.Ranker
	MemoryPipeline *memory.Pipeline
	Embeddings     *embedding.Chain
	LLM            llm.Client
	Breakers       *breaker.Registry
	Accountant     *tokens.Accountant
	Observer       *observer.Producer
	// Tools is optional: domain tool implementations (place search,
	// directions, translation, itinerary) are out of this module's scope
	// (a named non-goal), so a nil Registry is a valid, fully-functional
	// configuration — Handle never dereferences it directly.
	Tools       *tools.Registry
	Model       string
	Temperature float64
	MaxTokens   int
}

// New builds a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		Store:          cfg.Store,
		Validator:      cfg.Validator,
		RateLimiter:    cfg.RateLimiter,
		Lock:           cfg.Lock,
		ContextManager: cfg.ContextManager,
		Ranker:         cfg.Ranker,
		MemoryPipeline: cfg.MemoryPipeline,
		Embeddings:     cfg.Embeddings,
		LLM:            cfg.LLM,
		Breakers:       cfg.Breakers,
		Accountant:     cfg.Accountant,
		Observer:       cfg.Observer,
		Tools:          cfg.Tools,
		Model:          cfg.Model,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
	}
}

// Handle runs one turn through the full pipeline (spec §2's flow, steps
// H-E-C-B-F-G-LLM-G-B-H).
func (p *Pipeline) Handle(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	threadID := req.ThreadID
	if threadID == "" {
		threadID = string(core.MustNewID())
	}

	p.emit(ctx, core.EventRequestStarted, threadID, req.UserID, nil, nil)

	sanitized, _, err := p.Validator.Validate(req.Message)
	if err != nil {
		p.handleFailure(ctx, threadID, req.UserID, start, err)
		return nil, err
	}

	if p.RateLimiter != nil {
		result, err := p.RateLimiter.CheckRequest(ctx, req.UserID, req.ClientIP)
		if err != nil {
			p.handleFailure(ctx, threadID, req.UserID, start, err)
			return nil, err
		}
		if !result.Allowed {
			p.emit(ctx, core.EventRateLimited, threadID, req.UserID, map[string]any{
				"retry_after_seconds": result.RetryAfter.Seconds(),
			}, nil)
			return nil, core.NewKindError(core.KindQuota, nil, core.CodeRateLimited, nil).
				WithRetryAfter(result.RetryAfter)
		}
	}

	var out *Result
	err = p.Lock.WithLock(ctx, threadID, func(ctx context.Context) error {
		result, err := p.runLocked(ctx, threadID, req, sanitized, start)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	if err != nil {
		p.handleFailure(ctx, threadID, req.UserID, start, err)
		return nil, err
	}

	log.Info("turn completed", "thread_id", threadID, "latency_ms", out.LatencyMS)
	p.emit(ctx, core.EventRequestCompleted, threadID, req.UserID, nil, &out.LatencyMS)
	return out, nil
}

// runLocked performs the state-mutating portion of the turn; the caller
// must already hold the thread's conversation lock.
func (p *Pipeline) runLocked(ctx context.Context, threadID string, req Request, sanitized string, start time.Time) (*Result, error) {
	id := core.ID(threadID)
	thread, ok, err := p.Store.Load(ctx, id)
	if err != nil {
		return nil, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil)
	}
	if !ok {
		thread = core.NewThread(id, req.UserID)
	}

	userMessage := core.NewMessage(core.RoleUser, sanitized, time.Now().UTC())
	thread.Append(userMessage)

	windowResult := p.ContextManager.Process(ctx, thread.Messages)
	if windowResult.SummarizationFailed {
		p.emit(ctx, core.EventSummarizationFallback, threadID, req.UserID, map[string]any{
			"removed_count": windowResult.RemovedCount,
		}, nil)
	}

	memoryContext, err := p.retrieveMemories(ctx, req.UserID, threadID, sanitized)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn("memory retrieval failed, proceeding without context", "error", err)
	}

	llmReq := buildRequest(p.Model, p.Temperature, p.MaxTokens, windowResult.Messages, memoryContext)
	resp, err := p.LLM.Complete(ctx, llmReq)
	if err != nil {
		return nil, err
	}

	assistantMessage := core.NewMessage(core.RoleAssistant, resp.Content, time.Now().UTC())
	thread.Append(assistantMessage)
	thread.Stage = nextStage(thread.Stage, core.ClassifyIntent(sanitized))
	thread.TotalTokens = p.Accountant.CountMessages(thread.Messages)
	thread.LastTurn = &core.TurnMetadata{
		TurnOrdinal:       thread.TurnCount,
		Timestamp:         time.Now().Unix(),
		Intent:            core.ClassifyIntent(sanitized),
		ObservedLatencyMS: time.Since(start).Milliseconds(),
		ObservedTokens:    resp.InputTokens + resp.OutputTokens,
	}

	if p.MemoryPipeline != nil {
		if err := p.MemoryPipeline.WriteTurn(ctx, req.UserID, threadID, sanitized, resp.Content); err != nil {
			log := logger.FromContext(ctx)
			log.Warn("memory write-back failed", "error", err)
		}
	}

	if err := p.Store.Save(ctx, thread); err != nil {
		return nil, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil)
	}

	return &Result{
		Response:   resp.Content,
		ThreadID:   threadID,
		TurnNumber: thread.TurnCount,
		Stage:      thread.Stage,
		LatencyMS:  time.Since(start).Milliseconds(),
		Timestamp:  time.Now().Unix(),
	}, nil
}

// retrieveMemories embeds the query and runs the ranked retrieval, if a
// ranker is configured.
func (p *Pipeline) retrieveMemories(ctx context.Context, userID, threadID, query string) ([]memory.Ranked, error) {
	if p.Ranker == nil || p.Embeddings == nil {
		return nil, nil
	}
	vectors, err := p.Embeddings.Embed(ctx, []string{query})
	if err != nil {
		return nil, core.NewKindError(core.KindDependency, err, core.CodeEmbeddingFailed, nil)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	filters := store.SearchFilters{UserID: userID, ThreadID: threadID}
	return p.Ranker.Retrieve(ctx, vectors[0], filters, memory.DefaultRankConfig(), time.Now())
}

// buildRequest composes the stage-aware prompt: system prompt, retrieved
// memory context (if any) as a system message, then the trimmed/summarized
// conversation.
func buildRequest(model string, temperature float64, maxTokens int, messages []core.Message, memories []memory.Ranked) llm.Request {
	wire := make([]llm.Message, 0, len(messages)+2)
	wire = append(wire, llm.Message{Role: string(core.RoleSystem), Content: SystemPrompt})
	if len(memories) > 0 {
		wire = append(wire, llm.Message{Role: string(core.RoleSystem), Content: formatMemoryContext(memories)})
	}
	for _, m := range messages {
		wire = append(wire, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return llm.Request{Model: model, Messages: wire, Temperature: temperature, MaxTokens: maxTokens}
}

func formatMemoryContext(memories []memory.Ranked) string {
	out := "Relevant memories:\n"
	for _, m := range memories {
		out += fmt.Sprintf("- (%s) %s\n", m.TimeHint, m.Content)
	}
	return out
}

// nextStage advances the thread's conversation stage heuristically from
// the classified intent, never regressing past Resolution.
func nextStage(current core.ThreadStage, intent core.Intent) core.ThreadStage {
	switch intent {
	case core.IntentSearchRequest, core.IntentDirectionsRequest:
		if current == core.StageInit {
			return core.StageInvestigation
		}
	case core.IntentItineraryRequest:
		if current != core.StageResolution {
			return core.StagePlanning
		}
	case core.IntentSaveRequest:
		return core.StageResolution
	}
	return current
}

// handleFailure classifies err into an observer event and emits it;
// called on every pipeline exit path that didn't reach request_completed.
func (p *Pipeline) handleFailure(ctx context.Context, threadID, userID string, start time.Time, err error) {
	latency := time.Since(start).Milliseconds()
	domainErr, ok := err.(*core.Error)
	if !ok {
		p.emit(ctx, core.EventErrorOccurred, threadID, userID, map[string]any{
			"error_message": err.Error(),
		}, &latency)
		return
	}
	if domainErr.Code == core.CodePromptInjection {
		p.emit(ctx, core.EventPromptInjectionDetect, threadID, userID, map[string]any{
			"details": domainErr.Details,
		}, &latency)
		return
	}
	if domainErr.Code == core.CodeCircuitOpen {
		p.emit(ctx, core.EventCircuitOpened, threadID, userID, map[string]any{
			"breaker": domainErr.Details["breaker"],
		}, &latency)
		return
	}
	p.emit(ctx, core.EventErrorOccurred, threadID, userID, map[string]any{
		"error_code":    domainErr.Code,
		"error_message": domainErr.Message,
	}, &latency)
}

func (p *Pipeline) emit(ctx context.Context, eventType core.EventType, threadID, userID string, payload map[string]any, latencyMS *int64) {
	if p.Observer == nil {
		return
	}
	p.Observer.Emit(ctx, core.Event{
		EventID:   string(core.MustNewID()),
		EventType: eventType,
		Timestamp: time.Now().Unix(),
		ThreadID:  threadID,
		UserID:    userID,
		Payload:   payload,
		LatencyMS: latencyMS,
	})
}
