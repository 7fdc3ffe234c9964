// Package config centralizes the environment-variable-driven configuration
// for agentcore, following the teacher's mapstructure-tagged, heavily
// doc-commented config struct convention. Values are loaded through Viper so
// every knob in the spec's Redis key layout / external interface section can
// be overridden by an environment variable without touching code.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RedisConfig holds the connection settings for the shared Redis instance
// used by the distributed lock, rate limiter, and observer queue.
type RedisConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

// ContextConfig controls the Context Window Manager (spec §4.F).
type ContextConfig struct {
	SoftLimitTokens int `mapstructure:"soft_limit_tokens"`
	HardLimitTokens int `mapstructure:"hard_limit_tokens"`
	RecentMessages  int `mapstructure:"recent_messages_count"`
}

// MemoryConfig controls the Memory Pipeline (spec §4.G).
type MemoryConfig struct {
	RetrievalTopK        int     `mapstructure:"retrieval_top_k"`
	SimilarityThreshold  float64 `mapstructure:"similarity_threshold"`
	RecencyWindowHours   int     `mapstructure:"recency_window_hours"`
	RelevanceWeight      float64 `mapstructure:"relevance_weight"`
	RecencyWeight        float64 `mapstructure:"recency_weight"`
	PreferenceBoost      float64 `mapstructure:"preference_boost"`
	EmbeddingDimension   int     `mapstructure:"embedding_dimension"`
}

// RateLimitConfig controls the Rate Limiter (spec §4.C).
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	RequestsPerHour   int `mapstructure:"requests_per_hour"`
}

// ObserverConfig controls the Observer Bus (spec §4.H).
type ObserverConfig struct {
	Enabled                 bool   `mapstructure:"enabled"`
	AnomalyDetectionEnabled bool   `mapstructure:"anomaly_detection_enabled"`
	WebhookURL              string `mapstructure:"webhook_url"`
	ReportEveryNEvents      int    `mapstructure:"report_every_n_events"`
}

// LLMConfig describes how the module reaches the external LLM service. The
// LLM client itself is a contract (see engine/llm) — only connection and
// policy knobs live here.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	ModelName   string  `mapstructure:"model_name"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// BreakerConfig holds per-dependency circuit breaker thresholds (spec §4.D).
type BreakerConfig struct {
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	RecoveryTimeout   time.Duration `mapstructure:"recovery_timeout"`
	HalfOpenMaxCalls  int           `mapstructure:"half_open_max_calls"`
	SuccessThreshold  int           `mapstructure:"success_threshold"`
}

// Config is the root configuration object, assembled by Load from Default()
// values and unprefixed environment variables (e.g. `CONTEXT_SOFT_LIMIT_TOKENS`).
type Config struct {
	Redis      RedisConfig     `mapstructure:"redis"`
	Context    ContextConfig   `mapstructure:"context"`
	Memory     MemoryConfig    `mapstructure:"memory"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Observer   ObserverConfig  `mapstructure:"observer"`
	LLM        LLMConfig       `mapstructure:"llm"`
	Breakers   map[string]BreakerConfig
}

// Default returns the configuration defaults mandated by spec §6.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Host:            "localhost",
			Port:            "6379",
			PoolSize:        10,
			DialTimeout:     5 * time.Second,
			ReadTimeout:     3 * time.Second,
			WriteTimeout:    3 * time.Second,
			MaxRetries:      3,
			MinRetryBackoff: 8 * time.Millisecond,
			MaxRetryBackoff: 512 * time.Millisecond,
			PoolTimeout:     4 * time.Second,
			PingTimeout:     10 * time.Second,
		},
		Context: ContextConfig{
			SoftLimitTokens: 6000,
			HardLimitTokens: 8000,
			RecentMessages:  20,
		},
		Memory: MemoryConfig{
			RetrievalTopK:       5,
			SimilarityThreshold: 0.7,
			RecencyWindowHours:  24,
			RelevanceWeight:     0.8,
			RecencyWeight:       0.2,
			PreferenceBoost:     1.2,
			EmbeddingDimension:  1536,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			RequestsPerHour:   500,
		},
		Observer: ObserverConfig{
			Enabled:                 true,
			AnomalyDetectionEnabled: true,
			ReportEveryNEvents:      100,
		},
		LLM: LLMConfig{
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		Breakers: map[string]BreakerConfig{
			"llm":          defaultBreakerConfig(),
			"vector-store": defaultBreakerConfig(),
			"map-api":      defaultBreakerConfig(),
		},
	}
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
		SuccessThreshold: 2,
	}
}

// Load reads configuration from the environment into a Config seeded with
// Default() values. The naming scheme mirrors spec §6: the unprefixed names
// bound in bindLegacyAliases (`CONTEXT_SOFT_LIMIT_TOKENS`, `REDIS_URL`,
// `RATE_LIMIT_REQUESTS_PER_MINUTE`, etc.) are recognized. No config file is
// read, and no `AGENTCORE_`-prefixed form is recognized.
func Load() (*Config, error) {
	cfg := Default()
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyAliases(v)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyLegacyOverrides(cfg, v)
	return cfg, nil
}

// bindLegacyAliases wires the flat, unprefixed environment variable names
// used throughout spec §6 to their nested mapstructure homes.
func bindLegacyAliases(v *viper.Viper) {
	aliases := map[string]string{
		"redis.url":                          "REDIS_URL",
		"context.soft_limit_tokens":          "CONTEXT_SOFT_LIMIT_TOKENS",
		"context.hard_limit_tokens":          "CONTEXT_HARD_LIMIT_TOKENS",
		"context.recent_messages_count":      "RECENT_MESSAGES_COUNT",
		"memory.retrieval_top_k":             "MEMORY_RETRIEVAL_TOP_K",
		"memory.similarity_threshold":        "MEMORY_SIMILARITY_THRESHOLD",
		"memory.embedding_dimension":         "EMBEDDING_DIMENSION",
		"rate_limit.requests_per_minute":     "RATE_LIMIT_REQUESTS_PER_MINUTE",
		"rate_limit.requests_per_hour":       "RATE_LIMIT_REQUESTS_PER_HOUR",
		"observer.enabled":                   "OBSERVER_AGENT_ENABLED",
		"observer.anomaly_detection_enabled": "ANOMALY_DETECTION_ENABLED",
		"llm.base_url":                       "LLM_BASE_URL",
		"llm.model_name":                     "LLM_MODEL_NAME",
		"llm.api_key":                        "LLM_API_KEY",
		"llm.temperature":                    "LLM_TEMPERATURE",
		"llm.max_tokens":                     "LLM_MAX_TOKENS",
	}
	for key, env := range aliases {
		_ = v.BindEnv(key, env)
	}
}

// applyLegacyOverrides re-reads the aliased keys after Unmarshal, since
// Viper's BindEnv does not retroactively populate already-unmarshaled
// structs when only the alias (not the nested key) was set.
func applyLegacyOverrides(cfg *Config, v *viper.Viper) {
	if s := v.GetString("redis.url"); s != "" {
		cfg.Redis.URL = s
	}
	if n := v.GetInt("context.soft_limit_tokens"); n != 0 {
		cfg.Context.SoftLimitTokens = n
	}
	if n := v.GetInt("context.hard_limit_tokens"); n != 0 {
		cfg.Context.HardLimitTokens = n
	}
	if n := v.GetInt("context.recent_messages_count"); n != 0 {
		cfg.Context.RecentMessages = n
	}
	if n := v.GetInt("memory.retrieval_top_k"); n != 0 {
		cfg.Memory.RetrievalTopK = n
	}
	if n := v.GetFloat64("memory.similarity_threshold"); n != 0 {
		cfg.Memory.SimilarityThreshold = n
	}
	if n := v.GetInt("memory.embedding_dimension"); n != 0 {
		cfg.Memory.EmbeddingDimension = n
	}
	if n := v.GetInt("rate_limit.requests_per_minute"); n != 0 {
		cfg.RateLimit.RequestsPerMinute = n
	}
	if n := v.GetInt("rate_limit.requests_per_hour"); n != 0 {
		cfg.RateLimit.RequestsPerHour = n
	}
	if v.IsSet("observer.enabled") {
		cfg.Observer.Enabled = v.GetBool("observer.enabled")
	}
	if v.IsSet("observer.anomaly_detection_enabled") {
		cfg.Observer.AnomalyDetectionEnabled = v.GetBool("observer.anomaly_detection_enabled")
	}
	if s := v.GetString("llm.base_url"); s != "" {
		cfg.LLM.BaseURL = s
	}
	if s := v.GetString("llm.model_name"); s != "" {
		cfg.LLM.ModelName = s
	}
	if s := v.GetString("llm.api_key"); s != "" {
		cfg.LLM.APIKey = s
	}
	if n := v.GetFloat64("llm.temperature"); n != 0 {
		cfg.LLM.Temperature = n
	}
	if n := v.GetInt("llm.max_tokens"); n != 0 {
		cfg.LLM.MaxTokens = n
	}
}

type configCtxKey struct{}

var ctxKey = configCtxKey{}

// ContextWith returns a copy of ctx carrying cfg.
func ContextWith(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey, cfg)
}

// FromContext extracts the Config stored in ctx, falling back to Default()
// when absent or of the wrong type.
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(ctxKey).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	return Default()
}
