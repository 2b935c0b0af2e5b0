// Package engine answers questions by gating, retrieving, assembling context
// and calling a chat model.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/observability"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/rag/assembler"
	"github.com/smallnest/campusrag/rag/gate"
	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxTokens = 280
	routerMaxTokens  = 64
)

// routerPrompt asks the router model for a search-friendly reformulation.
const routerPrompt = "Rewrite the following question into a short, explicit version for EPFL document search. Do not answer; return only the reformulated question. No pleasantries or meta."

// Retriever is the hybrid search the engine depends on.
type Retriever interface {
	Search(ctx context.Context, query string, vector []float32, limit int, userID string) ([]rag.FusedCandidate, error)
	SearchLimit(topK int) int
}

// Renderer converts a markdown reply to HTML.
type Renderer interface {
	Render(markdown string) string
}

// Config configures an Engine.
type Config struct {
	// Model is the default answer model id, overridden per request by Query.Model.
	Model string
	// RouterModel enables question rewriting before retrieval when set.
	RouterModel     string
	Temperature     float64
	MaxTokens       int
	SummaryLimit    int
	TranscriptLimit int
	ScoreThreshold  float64
}

// Engine is the answer pipeline.
type Engine struct {
	llm       llms.Model
	embedder  rag.Embedder
	retriever Retriever
	assembler *assembler.Assembler
	gate      gate.ScoreGate
	config    Config
	renderer  Renderer
	logger    log.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithAssembler replaces the default context assembler.
func WithAssembler(a *assembler.Assembler) Option {
	return func(e *Engine) { e.assembler = a }
}

// WithRenderer enables HTML rendering of replies.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine.
func New(llm llms.Model, embedder rag.Embedder, retriever Retriever, config Config, opts ...Option) *Engine {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.SummaryLimit <= 0 {
		config.SummaryLimit = DefaultSummaryLimit
	}
	if config.TranscriptLimit <= 0 {
		config.TranscriptLimit = DefaultTranscriptLimit
	}
	e := &Engine{
		llm:       llm,
		embedder:  embedder,
		retriever: retriever,
		assembler: assembler.New(assembler.DefaultConfig()),
		gate:      gate.NewScoreGate(config.ScoreThreshold),
		config:    config,
		tracer:    observability.Tracer(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = log.OrDefault(e.logger)
	return e
}

// Answer runs the full pipeline for q.
func (e *Engine) Answer(ctx context.Context, q rag.Query) (*rag.AnswerResult, error) {
	start := e.now()
	question := strings.TrimSpace(q.Question)
	if question == "" {
		e.metrics.ObserveAnswer(observability.OutcomeError, 0)
		return nil, rag.InvalidArgument("question must not be empty")
	}

	ctx, span := e.tracer.Start(ctx, "engine.Answer")
	defer span.End()

	res, outcome, err := e.answer(ctx, q, question)
	e.metrics.ObserveAnswer(outcome, e.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("campusrag.outcome", outcome),
		attribute.Float64("campusrag.best_score", res.BestScore),
		attribute.Int("campusrag.chunks", len(res.Chunks)),
	)
	return res, nil
}

func (e *Engine) answer(ctx context.Context, q rag.Query, question string) (*rag.AnswerResult, string, error) {
	start := e.now()
	var retrievalTime time.Duration
	var chunks []rag.ContextChunk
	bestScore := 0.0
	outcome := observability.OutcomeSmallTalk

	if !gate.IsSmallTalk(question) {
		t := e.now()
		var err error
		chunks, bestScore, err = e.retrieve(ctx, q, question)
		if err != nil {
			return nil, observability.OutcomeError, err
		}
		retrievalTime = e.now().Sub(t)
		outcome = observability.OutcomeNoContext
		if len(chunks) > 0 {
			outcome = observability.OutcomeRAG
		}
	}

	prompt := BuildUserPrompt(PromptInput{
		Question:   question,
		Summary:    q.Summary,
		Transcript: q.RecentTranscript,
		Chunks:     chunks,
	}, e.config.SummaryLimit, e.config.TranscriptLimit)

	t := e.now()
	reply, err := e.generate(ctx, e.modelFor(q), prompt)
	llmTime := e.now().Sub(t)
	if err != nil {
		return nil, observability.OutcomeError, err
	}

	res := &rag.AnswerResult{
		Reply:      reply,
		BestScore:  bestScore,
		Sources:    make([]rag.Source, 0, len(chunks)),
		SourceType: rag.SourceTypeNone,
		Chunks:     chunks,
	}
	if len(chunks) > 0 {
		res.SourceType = rag.SourceTypeRAG
		if u := chunks[0].URL; u != "" {
			res.PrimaryURL = &u
		}
		for i, c := range chunks {
			res.Sources = append(res.Sources, rag.Source{Idx: i + 1, Title: c.Title, URL: c.URL, Score: c.Score})
		}
	}
	if e.renderer != nil {
		res.ReplyHTML = e.renderer.Render(reply)
	}

	e.logger.Info("engine.timing outcome=%s totalMs=%d retrievalMs=%d llmMs=%d chosen=%d best=%.4f source_type=%s",
		outcome, e.now().Sub(start).Milliseconds(), retrievalTime.Milliseconds(), llmTime.Milliseconds(),
		len(chunks), bestScore, res.SourceType)
	return res, outcome, nil
}

// retrieve embeds the (possibly rewritten) question, runs hybrid search and
// applies the score gate. It returns the assembled chunks and the top fused
// score; chunks are empty when the gate fails.
func (e *Engine) retrieve(ctx context.Context, q rag.Query, question string) ([]rag.ContextChunk, float64, error) {
	ctx, span := e.tracer.Start(ctx, "engine.retrieve")
	defer span.End()

	searchText := e.rewrite(ctx, question)

	t := e.now()
	vectors, err := e.embedder.Embed(ctx, []string{searchText})
	e.metrics.ObserveStage("embed", e.now().Sub(t))
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	if len(vectors) == 0 {
		return nil, 0, rag.Upstream("embedding returned no vector for the question", 0, "", nil)
	}

	t = e.now()
	fused, err := e.retriever.Search(ctx, searchText, vectors[0], e.retriever.SearchLimit(q.TopK), q.UserID)
	e.metrics.ObserveStage("search", e.now().Sub(t))
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}

	best := 0.0
	if len(fused) > 0 {
		best = fused[0].Score
	}
	e.metrics.ObserveBestScore(best)
	span.SetAttributes(attribute.Int("campusrag.candidates", len(fused)))

	if !e.gate.Pass(best) {
		e.logger.Debug("engine.score_gate best=%.4f threshold=%.4f candidates=%d", best, e.gate.Threshold, len(fused))
		return nil, best, nil
	}
	return e.assembler.Assemble(fused), best, nil
}

// rewrite asks the router model for a search reformulation. Any failure
// falls back to the original question.
func (e *Engine) rewrite(ctx context.Context, question string) string {
	if e.config.RouterModel == "" {
		return question
	}
	resp, err := e.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, routerPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	},
		llms.WithModel(e.config.RouterModel),
		llms.WithTemperature(0),
		llms.WithMaxTokens(routerMaxTokens),
	)
	if err != nil {
		e.logger.Warn("engine.router_failed err=%v", err)
		return question
	}
	if len(resp.Choices) == 0 {
		return question
	}
	if routed := strings.TrimSpace(resp.Choices[0].Content); routed != "" {
		return routed
	}
	return question
}

func (e *Engine) generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "engine.generate", trace.WithAttributes(attribute.String("campusrag.model", model)))
	defer span.End()

	t := e.now()
	resp, err := e.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	},
		llms.WithModel(model),
		llms.WithTemperature(e.config.Temperature),
		llms.WithMaxTokens(e.config.MaxTokens),
	)
	e.metrics.ObserveStage("generate", e.now().Sub(t))
	if err != nil {
		span.RecordError(err)
		return "", rag.ModelFailure("chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", rag.ModelFailure("chat completion returned no choices", nil)
	}
	return CleanReply(resp.Choices[0].Content), nil
}

func (e *Engine) modelFor(q rag.Query) string {
	if m := strings.TrimSpace(q.Model); m != "" {
		return m
	}
	return e.config.Model
}
