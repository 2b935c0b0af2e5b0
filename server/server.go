// Package server exposes the answer engine, the conversation store and the
// indexer over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallnest/campusrag/intent"
	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/rag/indexer"
	"github.com/smallnest/campusrag/store"
)

const (
	// DefaultHistory is how many stored messages are loaded to fill a
	// missing summary and transcript.
	DefaultHistory = 8
	// APIKeyHeader carries the key for protected endpoints.
	APIKeyHeader = "x-api-key"
)

// Answerer answers one question.
type Answerer interface {
	Answer(ctx context.Context, q rag.Query) (*rag.AnswerResult, error)
}

// IntentRouter hands classified questions to connector handlers.
type IntentRouter interface {
	Route(ctx context.Context, question string) (intent.Intent, string, bool, error)
}

// ChunkIndexer indexes pre-chunked documents.
type ChunkIndexer interface {
	Index(ctx context.Context, chunks []indexer.Chunk) (indexer.Result, error)
}

// Titler names a conversation from its first question.
type Titler interface {
	Generate(ctx context.Context, question string) (string, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	answerer Answerer
	router   IntentRouter
	messages store.MessageStore
	indexer  ChunkIndexer
	titles   Titler
	gatherer prometheus.Gatherer
	apiKey   string
	history  int
	topK     int
	logger   log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithIntentRouter routes questions to connectors before the engine.
func WithIntentRouter(r IntentRouter) Option {
	return func(s *Server) { s.router = r }
}

// WithMessages enables the conversation endpoints and history lookup.
func WithMessages(m store.MessageStore) Option {
	return func(s *Server) { s.messages = m }
}

// WithIndexer enables POST /v1/index.
func WithIndexer(ix ChunkIndexer) Option {
	return func(s *Server) { s.indexer = ix }
}

// WithTitler enables POST /v1/title.
func WithTitler(t Titler) Option {
	return func(s *Server) { s.titles = t }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithAPIKey requires key in the x-api-key header of the answer and index
// endpoints. An empty key disables the check.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithHistory sets how many stored messages feed a request without summary
// or transcript.
func WithHistory(n int) Option {
	return func(s *Server) { s.history = n }
}

// WithDefaultTopK sets the retrieval depth for requests without topK.
func WithDefaultTopK(k int) Option {
	return func(s *Server) { s.topK = k }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server around answerer.
func New(answerer Answerer, opts ...Option) *Server {
	s := &Server{
		answerer: answerer,
		history:  DefaultHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger)
	return s
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.SetupRoutes(router)
	return router
}

// SetupRoutes registers the routes on router.
func (s *Server) SetupRoutes(router *gin.Engine) {
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/answer", s.requireKey(), s.handleAnswer)
		if s.indexer != nil {
			v1.POST("/index", s.requireKey(), s.handleIndex)
		}
		if s.titles != nil {
			v1.POST("/title", s.handleTitle)
		}
		if s.messages != nil {
			conversations := v1.Group("/users/:uid/conversations/:cid")
			{
				conversations.POST("/messages", s.handleCreateMessage)
				conversations.GET("/messages", s.handleListMessages)
			}
		}
	}
}

// requireKey rejects requests whose x-api-key does not match the configured key.
func (s *Server) requireKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey != "" && c.GetHeader(APIKeyHeader) != s.apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Unauthorized", "unauthorized"))
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http.request method=%s path=%s status=%d elapsed=%s",
			c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
