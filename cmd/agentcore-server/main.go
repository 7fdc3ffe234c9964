// Command agentcore-server is the thin composition root wiring the eight
// middleware components into a runnable process (spec §1 treats the HTTP
// surface itself as contractual only; this binary is the supplemented,
// minimal implementation of that contract). Grounded on the teacher's
// engine/infra/server.Server shape: build dependencies, build the router,
// start the server, wait for SIGINT/SIGTERM, shut down gracefully.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wanderlyst/agentcore/engine/agent"
	"github.com/wanderlyst/agentcore/engine/breaker"
	"github.com/wanderlyst/agentcore/engine/cache"
	contextwindow "github.com/wanderlyst/agentcore/engine/context"
	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/httpapi"
	"github.com/wanderlyst/agentcore/engine/llm"
	"github.com/wanderlyst/agentcore/engine/lock"
	"github.com/wanderlyst/agentcore/engine/memory"
	"github.com/wanderlyst/agentcore/engine/memory/embedding"
	"github.com/wanderlyst/agentcore/engine/memory/store"
	"github.com/wanderlyst/agentcore/engine/monitoring"
	"github.com/wanderlyst/agentcore/engine/observer"
	"github.com/wanderlyst/agentcore/engine/ratelimit"
	"github.com/wanderlyst/agentcore/engine/threadstore"
	"github.com/wanderlyst/agentcore/engine/tokens"
	"github.com/wanderlyst/agentcore/engine/validator"
	"github.com/wanderlyst/agentcore/pkg/config"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

const shutdownGracePeriod = 10 * time.Second

func main() {
	log := logger.NewLogger(nil)
	ctx := logger.ContextWithLogger(context.Background(), log)

	if err := run(ctx); err != nil {
		log.Error("agentcore-server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	redisClient, err := cache.NewRedis(ctx, redisConfig(cfg))
	if err != nil {
		return err
	}
	defer redisClient.Close()

	threadStore, closeThreadStore := buildThreadStore(ctx, cfg)
	defer closeThreadStore()

	vectorStore, closeVectorStore := buildVectorStore(ctx, cfg)
	defer closeVectorStore()

	breakers := breaker.NewRegistry(ctx)
	for name, bc := range cfg.Breakers {
		breakers.Register(name, breaker.Config{
			FailureThreshold: bc.FailureThreshold,
			RecoveryTimeout:  bc.RecoveryTimeout,
			HalfOpenMaxCalls: bc.HalfOpenMaxCalls,
			SuccessThreshold: bc.SuccessThreshold,
		})
	}

	baseLLM := llm.NewHTTPClient(llm.HTTPConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
	})
	retryingLLM := llm.NewRetryingClient(baseLLM, breakers, llm.DefaultRetryConfig())
	summarizerLLM := llm.NewNamedRetryingClient("llm-summarizer", baseLLM, breakers, llm.DefaultRetryConfig())

	acct := tokens.New()
	ctxManager := contextwindow.New(acct, summarizerLLM, contextwindow.Config{
		SoftLimitTokens: uint(cfg.Context.SoftLimitTokens),
		HardLimitTokens: uint(cfg.Context.HardLimitTokens),
		KeepRecent:      cfg.Context.RecentMessages,
	}, nil)

	embeddingChain := buildEmbeddingChain(cfg)
	ranker := memory.NewRanker(vectorStore, store.CollectionConversation)
	memPipeline := memory.NewPipeline(embeddingChain, vectorStore, store.CollectionConversation)

	lockManager := lock.NewManager(redisClient, 0)
	conversationLock := lock.NewConversationLock(lockManager, lock.DefaultConversationTTL, lock.DefaultConversationTimeout)

	rateLimiter := ratelimit.NewService(redisClient, &ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		RequestsPerHour:   cfg.RateLimit.RequestsPerHour,
	})

	monitoringSvc, err := monitoring.New(ctx, "agentcore")
	if err != nil {
		log.Error("metrics disabled: failed to initialize monitoring service", "error", err)
	} else {
		monitoringSvc.SetAsGlobal()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := monitoringSvc.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down monitoring service", "error", err)
		}
	}()

	observerProducer := observer.NewProducer(redisClient)

	pipeline := agent.New(agent.Config{
		Store:          threadStore,
		Validator:      validator.New(),
		RateLimiter:    rateLimiter,
		Lock:           conversationLock,
		ContextManager: ctxManager,
		Ranker:         ranker,
		MemoryPipeline: memPipeline,
		Embeddings:     embeddingChain,
		LLM:            retryingLLM,
		Breakers:       breakers,
		Accountant:     acct,
		Observer:       observerProducer,
		Model:          cfg.LLM.ModelName,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
	})

	if cfg.Observer.Enabled {
		consumerCtx, cancelConsumer := context.WithCancel(ctx)
		defer cancelConsumer()
		metrics, err := observer.NewMetrics(monitoringSvc.Meter())
		if err != nil {
			return err
		}
		alerter := observer.NewAlerter(cfg.Observer.WebhookURL)
		consumer := observer.NewConsumer(redisClient, alerter, metrics, observer.Config{
			AnomalyDetectionEnabled: cfg.Observer.AnomalyDetectionEnabled,
		})
		go func() {
			if err := consumer.Run(consumerCtx); err != nil {
				log.Error("observer consumer loop exited", "error", err)
			}
		}()
	}

	checker := httpapi.NewReadinessChecker(0)
	checker.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	handler := httpapi.NewHandler(pipeline, checker)
	router := httpapi.NewRouter(handler, monitoringSvc.ExporterHandler())

	server := &http.Server{
		Addr:              serverAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrs := make(chan error, 1)
	go func() {
		log.Info("agentcore-server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
		}
		close(serverErrs)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrs:
		if err != nil {
			return err
		}
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func serverAddr() string {
	if addr := os.Getenv("AGENTCORE_HTTP_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func redisConfig(cfg *config.Config) *cache.Config {
	return &cache.Config{
		URL:             cfg.Redis.URL,
		Host:            cfg.Redis.Host,
		Port:            cfg.Redis.Port,
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		PoolSize:        cfg.Redis.PoolSize,
		DialTimeout:     cfg.Redis.DialTimeout,
		ReadTimeout:     cfg.Redis.ReadTimeout,
		WriteTimeout:    cfg.Redis.WriteTimeout,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		PoolTimeout:     cfg.Redis.PoolTimeout,
		PingTimeout:     cfg.Redis.PingTimeout,
	}
}

// buildThreadStore wires PostgresStore when DATABASE_URL is set (thread
// persistence's concrete relational driver is out of scope per spec.md;
// an in-memory store is otherwise a legitimate default for a single
// process), returning a no-op close function for the in-memory case.
func buildThreadStore(ctx context.Context, _ *config.Config) (core.Store, func()) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return threadstore.NewInMemoryStore(), func() {}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.FromContext(ctx).Error("failed to connect to DATABASE_URL, falling back to in-memory thread store", "error", err)
		return threadstore.NewInMemoryStore(), func() {}
	}
	return threadstore.NewPostgresStore(pool), pool.Close
}

// buildVectorStore wires PGVectorStore when VECTOR_STORE_URL is set,
// otherwise a brute-force filesystem index suitable for a single process
// or local development.
func buildVectorStore(ctx context.Context, _ *config.Config) (store.Store, func()) {
	dsn := os.Getenv("VECTOR_STORE_URL")
	if dsn == "" {
		return store.NewFilesystemStore(), func() {}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.FromContext(ctx).Error("failed to connect to VECTOR_STORE_URL, falling back to filesystem vector store", "error", err)
		return store.NewFilesystemStore(), func() {}
	}
	return store.NewPGVectorStore(pool), pool.Close
}

// buildEmbeddingChain wires a remote embeddings provider ahead of a local
// deterministic fallback (spec §4.G: the chain tries each provider in
// order), using the configured LLM connection details as the embeddings
// endpoint's defaults.
func buildEmbeddingChain(cfg *config.Config) *embedding.Chain {
	dimension := cfg.Memory.EmbeddingDimension
	providers := make([]embedding.Provider, 0, 2)
	if cfg.LLM.BaseURL != "" {
		providers = append(providers, embedding.NewRemoteProvider(embedding.RemoteConfig{
			Name:      "remote",
			BaseURL:   cfg.LLM.BaseURL,
			APIKey:    cfg.LLM.APIKey,
			Dimension: dimension,
		}))
	}
	providers = append(providers, embedding.NewLocalProvider(dimension))
	return embedding.NewChain(providers...)
}
