package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wanderlyst/agentcore/engine/agent"
	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

const defaultConversationsPageSize = 20

// Handler wraps the agent pipeline and thread store behind the spec §6
// HTTP surface, following the teacher's Handler-wraps-a-service
// construction (engine/auth/router/handler.go).
type Handler struct {
	Pipeline *agent.Pipeline
	Checker  *ReadinessChecker
}

// NewHandler builds a Handler over pipeline and an optional readiness
// checker (nil disables /ready's dependency probing, reporting it simply
// "ready").
func NewHandler(pipeline *agent.Pipeline, checker *ReadinessChecker) *Handler {
	return &Handler{Pipeline: pipeline, Checker: checker}
}

type chatRequest struct {
	Message  string `json:"message" binding:"required"`
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Language string `json:"language"`
}

type chatResponse struct {
	Response   string          `json:"response"`
	ThreadID   string          `json:"thread_id"`
	TurnNumber int             `json:"turn_number"`
	Stage      core.ThreadStage `json:"stage"`
	LatencyMS  int64           `json:"latency_ms"`
	Timestamp  int64           `json:"timestamp"`
}

// Chat handles POST /api/v1/chat.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorEnvelope{Error: errorBody{
			Code:    httpCodeValidationError,
			Message: "request body must include a non-empty message",
		}})
		return
	}

	result, err := h.Pipeline.Handle(c.Request.Context(), agent.Request{
		UserID:   req.UserID,
		ThreadID: req.ThreadID,
		Message:  req.Message,
		Language: req.Language,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		Response:   result.Response,
		ThreadID:   result.ThreadID,
		TurnNumber: result.TurnNumber,
		Stage:      result.Stage,
		LatencyMS:  result.LatencyMS,
		Timestamp:  result.Timestamp,
	})
}

// ChatStream handles POST /api/v1/chat/stream. The agent pipeline's LLM
// contract returns a completed response rather than a token stream (spec
// §1 treats "the LLM client itself... a request/response call with
// streaming option" as an external collaborator's concern), so this
// handler runs one full turn and re-chunks its response word-by-word over
// SSE, giving stream clients the documented wire contract without this
// module inventing a token-level LLM streaming protocol.
func (h *Handler) ChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorEnvelope{Error: errorBody{
			Code:    httpCodeValidationError,
			Message: "request body must include a non-empty message",
		}})
		return
	}

	result, err := h.Pipeline.Handle(c.Request.Context(), agent.Request{
		UserID:   req.UserID,
		ThreadID: req.ThreadID,
		Message:  req.Message,
		Language: req.Language,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		sendError(c, err)
		return
	}

	c.Header("X-Thread-ID", result.ThreadID)
	stream := StartSSE(c.Writer)
	if stream == nil {
		sendError(c, core.NewKindError(core.KindInternal, nil, core.CodeInternal, nil))
		return
	}

	log := logger.FromContext(c.Request.Context())
	chunks := strings.Fields(result.Response)
	for i, chunk := range chunks {
		if i > 0 {
			chunk = " " + chunk
		}
		if err := stream.WriteEvent(int64(i), "message", []byte(chunk)); err != nil {
			log.Warn("chat stream write failed", "error", err)
			return
		}
	}
	if err := stream.WriteEvent(int64(len(chunks)), "message", []byte("[DONE]")); err != nil {
		log.Warn("chat stream write failed", "error", err)
	}
}

// GetConversation handles GET /api/v1/conversations/{thread_id}.
func (h *Handler) GetConversation(c *gin.Context) {
	id := core.ID(c.Param("thread_id"))
	thread, ok, err := h.Pipeline.Store.Load(c.Request.Context(), id)
	if err != nil {
		sendError(c, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil))
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, errorEnvelope{Error: errorBody{
			Code:    httpCodeInvalidInput,
			Message: "conversation not found",
		}})
		return
	}
	c.JSON(http.StatusOK, thread)
}

// DeleteConversation handles DELETE /api/v1/conversations/{thread_id}.
func (h *Handler) DeleteConversation(c *gin.Context) {
	id := core.ID(c.Param("thread_id"))
	if err := h.Pipeline.Store.Delete(c.Request.Context(), id); err != nil {
		sendError(c, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil))
		return
	}
	c.Status(http.StatusNoContent)
}

// ListConversations handles GET /api/v1/conversations?user_id=&limit=&offset=.
func (h *Handler) ListConversations(c *gin.Context) {
	userID := c.Query("user_id")
	limit := queryInt(c, "limit", defaultConversationsPageSize)
	offset := queryInt(c, "offset", 0)

	threads, err := h.Pipeline.Store.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		sendError(c, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": threads})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// Health handles GET /health: liveness, always 200 once the process is
// serving requests.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready: readiness, probing every configured
// dependency and reporting 503 if any required one is down.
func (h *Handler) Ready(c *gin.Context) {
	if h.Checker == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	results := h.Checker.Check(c.Request.Context())
	status := http.StatusOK
	for _, err := range results {
		if err != nil {
			status = http.StatusServiceUnavailable
			break
		}
	}
	body := gin.H{}
	for name, err := range results {
		if err != nil {
			body[name] = err.Error()
		} else {
			body[name] = "ok"
		}
	}
	c.JSON(status, body)
}
