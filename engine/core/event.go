package core

// EventType is the closed set of event kinds the Observer Bus understands.
// Consumers must tolerate unknown values by logging and ignoring them, so
// this enum is a convenience, not an exhaustive gate.
type EventType string

const (
	EventRequestStarted        EventType = "REQUEST_STARTED"
	EventRequestCompleted      EventType = "REQUEST_COMPLETED"
	EventErrorOccurred         EventType = "ERROR_OCCURRED"
	EventRateLimited           EventType = "RATE_LIMITED"
	EventPromptInjectionDetect EventType = "PROMPT_INJECTION_DETECTED"
	EventSummarizationFallback EventType = "SUMMARIZATION_FALLBACK"
	EventCircuitOpened         EventType = "CIRCUIT_OPENED"
	EventNaverAPICalled        EventType = "NAVER_API_CALLED"
)

// Event is the envelope enqueued to the shared Observer Bus queue.
type Event struct {
	EventID      string         `json:"event_id"`
	EventType    EventType      `json:"event_type"`
	Timestamp    int64          `json:"timestamp"`
	ThreadID     string         `json:"thread_id"`
	UserID       string         `json:"user_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	LatencyMS    *int64         `json:"latency_ms,omitempty"`
	TokenCount   *uint          `json:"token_count,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StackTrace   string         `json:"stack_trace,omitempty"`
}
