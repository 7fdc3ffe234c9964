package core

// Error codes shared across packages, mirroring the HTTP error envelope
// codes and the taxonomy buckets they belong to.
const (
	CodeEmptyInput      = "EMPTY_INPUT"
	CodeInputTooLong    = "INPUT_TOO_LONG"
	CodePromptInjection = "PROMPT_INJECTION"
	CodeRateLimited     = "RATE_LIMITED"
	CodeLockTimeout     = "LOCK_TIMEOUT"
	CodeCircuitOpen     = "CIRCUIT_OPEN"
	CodeEmbeddingFailed = "EMBEDDING_FAILURE"
	CodeVectorStoreFail = "VECTOR_STORE_FAILURE"
	CodeLLMFailure      = "LLM_FAILURE"
	CodeStoreFailure    = "STORE_FAILURE"
	CodeInternal        = "INTERNAL_ERROR"
)
