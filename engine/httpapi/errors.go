package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wanderlyst/agentcore/engine/core"
)

// errorEnvelope is the spec §6 wire shape: {"error": {"code", "message",
// "details"?}}, generalizing the teacher's flatter
// {"error": string, "details": string} (engine/auth/error_response.go) into
// a nested object so the machine-readable code travels alongside the
// human-readable message.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// HTTP-layer error codes, the closed set spec §6 documents for the error
// envelope's "code" field. These are distinct from core.ErrorCodes, which
// are domain-internal; httpCodeFor maps one to the other.
const (
	httpCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	httpCodeServiceUnavail    = "SERVICE_UNAVAILABLE"
	httpCodeInvalidInput      = "INVALID_INPUT"
	httpCodeValidationError   = "VALIDATION_ERROR"
	httpCodeInternalError     = "INTERNAL_ERROR"
)

// sendError writes err as the spec's error envelope, mapping its Kind to a
// status code and its Code to the HTTP-layer code, and setting
// Retry-After when the domain error carries one (rate limit, circuit
// open).
func sendError(c *gin.Context, err error) {
	var domainErr *core.Error
	if !errors.As(err, &domainErr) {
		c.JSON(http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Code:    httpCodeInternalError,
			Message: "an internal error occurred",
		}})
		return
	}

	status, code := StatusAndCode(domainErr)
	if domainErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(domainErr.RetryAfter.Seconds())))
	}
	c.JSON(status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: domainErr.Message,
		Details: domainErr.Details,
	}})
}

// StatusAndCode maps a domain error's Kind/Code to the HTTP status and wire
// code spec §6 documents: 422 for validation failures (empty/too long), 400
// for a detected prompt injection, 429 for rate limiting, 503 for a busy
// dependency (open circuit, lock timeout), and 500 otherwise. Exported so
// other layers (logging middleware, tests) can reuse the same mapping.
func StatusAndCode(e *core.Error) (int, string) {
	switch e.Code {
	case core.CodeEmptyInput, core.CodeInputTooLong:
		return http.StatusUnprocessableEntity, httpCodeValidationError
	case core.CodePromptInjection:
		return http.StatusBadRequest, httpCodeInvalidInput
	case core.CodeRateLimited:
		return http.StatusTooManyRequests, httpCodeRateLimitExceeded
	case core.CodeCircuitOpen, core.CodeLockTimeout:
		return http.StatusServiceUnavailable, httpCodeServiceUnavail
	}
	switch e.Kind {
	case core.KindUser:
		return http.StatusUnprocessableEntity, httpCodeValidationError
	case core.KindQuota:
		return http.StatusTooManyRequests, httpCodeRateLimitExceeded
	case core.KindBusy, core.KindDependency:
		return http.StatusServiceUnavailable, httpCodeServiceUnavail
	default:
		return http.StatusInternalServerError, httpCodeInternalError
	}
}
