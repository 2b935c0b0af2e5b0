package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallnest/campusrag/config"
	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/memory"
	"github.com/smallnest/campusrag/observability"
	"github.com/smallnest/campusrag/rag/assembler"
	"github.com/smallnest/campusrag/rag/embedding"
	"github.com/smallnest/campusrag/rag/engine"
	"github.com/smallnest/campusrag/rag/indexer"
	"github.com/smallnest/campusrag/rag/qdrant"
	"github.com/smallnest/campusrag/rag/retriever"
	"github.com/smallnest/campusrag/render"
	"github.com/smallnest/campusrag/store"
	memstore "github.com/smallnest/campusrag/store/memory"
	"github.com/smallnest/campusrag/store/postgres"
	redisstore "github.com/smallnest/campusrag/store/redis"
	"github.com/smallnest/campusrag/store/sqlite"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// components is everything the commands share.
type components struct {
	llm      llms.Model
	embedder *embedding.Client
	qdrant   *qdrant.Client
	engine   *engine.Engine
	indexer  *indexer.Indexer
	titles   *memory.TitleGenerator
	registry *prometheus.Registry
	metrics  *observability.Metrics
}

func newLLM(c config.LLMConfig) (llms.Model, error) {
	opts := []openai.Option{openai.WithModel(c.Model)}
	if c.APIKey != "" {
		opts = append(opts, openai.WithToken(c.APIKey))
	}
	if c.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(embedding.WithV1(c.BaseURL)))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	return llm, nil
}

func newComponents(c config.Config, logger log.Logger) (*components, error) {
	llm, err := newLLM(c.LLM)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	embedder := embedding.NewClient(embedding.Config{
		BaseURL:   c.EmbeddingBaseURL(),
		APIKey:    c.EmbeddingAPIKey(),
		Model:     c.Embedding.Model,
		BatchSize: c.Embedding.BatchSize,
		Pause:     c.Embedding.Pause,
		Logger:    logger,
	})
	qc := qdrant.NewClient(qdrant.Config{
		URL:        c.Qdrant.URL,
		APIKey:     c.Qdrant.APIKey,
		Collection: c.Qdrant.Collection,
		DenseName:  c.Qdrant.DenseName,
		SparseName: c.Qdrant.SparseName,
		Logger:     logger,
	})
	hybrid := retriever.NewHybridRetriever(qc, hybridConfig(c), retriever.WithLogger(logger), retriever.WithMetrics(metrics))

	opts := []engine.Option{
		engine.WithAssembler(assembler.New(assembler.Config{
			MaxDocs:      c.Retrieval.MaxDocs,
			MaxPerDoc:    c.Retrieval.MaxPerDoc,
			Budget:       c.Retrieval.Budget,
			SnippetLimit: c.Retrieval.SnippetLimit,
		})),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
	}
	if c.Server.RenderHTML {
		opts = append(opts, engine.WithRenderer(render.NewHTMLRenderer()))
	}
	eng := engine.New(llm, embedder, hybrid, engine.Config{
		Model:           c.LLM.Model,
		RouterModel:     c.LLM.RouterModel,
		Temperature:     c.LLM.Temperature,
		MaxTokens:       c.LLM.MaxTokens,
		SummaryLimit:    c.Retrieval.SummaryLimit,
		TranscriptLimit: c.Retrieval.TranscriptLimit,
		ScoreThreshold:  c.Retrieval.ScoreThreshold,
	}, opts...)

	return &components{
		llm:      llm,
		embedder: embedder,
		qdrant:   qc,
		engine:   eng,
		indexer:  indexer.New(embedder, qc, indexer.WithDenseName(c.Qdrant.DenseName), indexer.WithLogger(logger)),
		titles:   memory.NewTitleGenerator(llm, c.TitleModel()),
		registry: registry,
		metrics:  metrics,
	}, nil
}

// hybridConfig maps the retrieval and Qdrant sections. The Qdrant floor is
// on the backend's score scale, the fused gate is configured separately.
func hybridConfig(c config.Config) retriever.HybridConfig {
	return retriever.HybridConfig{
		RRFK:           c.Retrieval.RRFK,
		PoolSize:       c.Retrieval.PoolSize,
		ScoreThreshold: c.Qdrant.ScoreThreshold,
		HNSWEf:         c.Qdrant.HNSWEf,
		PartitionKey:   c.Qdrant.PartitionKey,
	}
}

func summaryConfig(cfg config.Config, logger log.Logger) memory.SummaryConfig {
	return memory.SummaryConfig{
		Model:           cfg.LLM.SummaryModel,
		FallbackModel:   cfg.LLM.Model,
		MaxTokens:       cfg.Memory.MaxTokens,
		PriorLimit:      cfg.Memory.PriorLimit,
		TranscriptLimit: cfg.Memory.TranscriptLimit,
		MaxTurns:        cfg.Memory.MaxTurns,
		OutputLimit:     cfg.Memory.SummaryLimit,
		Logger:          logger,
	}
}

// summaryBuilder builds the rolling summary builder on the shared chat model.
func (c *components) summaryBuilder(cfg config.Config, logger log.Logger) *memory.RollingSummaryBuilder {
	return memory.NewRollingSummaryBuilder(c.llm, summaryConfig(cfg, logger))
}

// openStore opens the configured message store backend.
func openStore(ctx context.Context, c config.StoreConfig) (store.MessageStore, error) {
	switch strings.ToLower(c.Backend) {
	case config.BackendMemory, "":
		return memstore.NewMemoryMessageStore(), nil
	case config.BackendRedis:
		return redisstore.NewRedisMessageStore(redisOptions(c.Redis)), nil
	case config.BackendPostgres:
		s, err := postgres.NewPostgresMessageStore(ctx, postgres.PostgresOptions{
			ConnString: c.Postgres.ConnString,
			TableName:  c.Postgres.Table,
		})
		if err != nil {
			return nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.BackendSQLite:
		s, err := sqlite.NewSqliteMessageStore(sqlite.SqliteOptions{
			Path:      c.SQLite.Path,
			TableName: c.SQLite.Table,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Backend)
	}
}

func redisOptions(c config.RedisConfig) redisstore.RedisOptions {
	return redisstore.RedisOptions{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		Prefix:   c.Prefix,
		TTL:      c.TTL,
	}
}

// conversations wires a message store to the summary orchestrator. With
// relay enabled, create events travel over Redis pub/sub before reaching the
// local bus. The returned stop function releases the relay.
func conversations(ctx context.Context, messages store.MessageStore, builder memory.SummaryBuilder, c config.Config, metrics *observability.Metrics, logger log.Logger) (store.MessageStore, func(), error) {
	bus := store.NewBus(logger)
	orchestrator := memory.NewOrchestrator(messages, builder, memory.OrchestratorConfig{
		Window:  c.Memory.Window,
		Logger:  logger,
		Metrics: metrics,
	})
	if err := orchestrator.Register(bus); err != nil {
		return nil, nil, err
	}

	if !c.Store.RelayEvents {
		return store.NewPublishingStore(messages, bus), bus.Wait, nil
	}

	opts := redisOptions(c.Store.Redis)
	listener := redisstore.NewListener(opts, logger)
	if err := listener.Start(ctx, bus); err != nil {
		return nil, nil, err
	}
	notifier := redisstore.NewNotifier(opts, logger)
	stop := func() {
		_ = notifier.Close()
		_ = listener.Close()
		bus.Wait()
	}
	return store.NewPublishingStore(messages, notifier), stop, nil
}
