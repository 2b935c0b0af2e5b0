package retriever

import (
	"context"

	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/observability"
	"github.com/smallnest/campusrag/rag"
	"golang.org/x/sync/errgroup"
)

// HybridConfig configures a HybridRetriever.
type HybridConfig struct {
	// RRFK is the fusion constant, default 60.
	RRFK int
	// PoolSize is the default fused limit, default 24.
	PoolSize int
	// ScoreThreshold is the backend-side floor applied to both modes.
	ScoreThreshold float64
	// HNSWEf tunes dense search.
	HNSWEf int
	// PartitionKey is the payload key holding the owning user id. Empty
	// disables per-user filtering.
	PartitionKey string
}

// HybridRetriever runs dense and sparse search concurrently and fuses them.
type HybridRetriever struct {
	searcher rag.VectorSearcher
	config   HybridConfig
	logger   log.Logger
	metrics  *observability.Metrics
}

// Option configures a HybridRetriever.
type Option func(*HybridRetriever)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(h *HybridRetriever) { h.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *HybridRetriever) { h.metrics = m }
}

// NewHybridRetriever creates a hybrid retriever over searcher.
func NewHybridRetriever(searcher rag.VectorSearcher, config HybridConfig, opts ...Option) *HybridRetriever {
	if config.RRFK <= 0 {
		config.RRFK = DefaultRRFK
	}
	if config.PoolSize <= 0 {
		config.PoolSize = DefaultPoolSize
	}
	h := &HybridRetriever{
		searcher: searcher,
		config:   config,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = log.OrDefault(h.logger)
	return h
}

// SearchLimit returns how many candidates to request for a caller topK:
// min(max(topK, 4), pool), or the pool when topK is unset.
func (h *HybridRetriever) SearchLimit(topK int) int {
	if topK <= 0 {
		return h.config.PoolSize
	}
	return min(max(topK, 4), h.config.PoolSize)
}

// Search issues the dense and sparse queries in parallel and returns the
// fused list, at most limit long. A dense failure is returned as is. A sparse
// failure is logged as DegradedRetrieval and fusion proceeds on dense hits.
func (h *HybridRetriever) Search(ctx context.Context, query string, vector []float32, limit int, userID string) ([]rag.FusedCandidate, error) {
	if limit <= 0 {
		limit = h.config.PoolSize
	}

	opts := rag.SearchOptions{
		Limit:          limit,
		ScoreThreshold: h.config.ScoreThreshold,
		Filter:         h.partitionFilter(userID),
		HNSWEf:         h.config.HNSWEf,
	}

	var dense, sparse []rag.Candidate
	var sparseErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = h.searcher.Dense(gctx, vector, opts)
		return err
	})
	g.Go(func() error {
		sparseOpts := opts
		sparseOpts.HNSWEf = 0
		sparse, sparseErr = h.searcher.Sparse(gctx, query, sparseOpts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if sparseErr != nil {
		degraded := rag.Degraded("sparse search failed, using dense results only", sparseErr)
		h.logger.Warn("retriever.sparse_degraded dense=%d err=%v", len(dense), degraded)
		h.metrics.IncDegraded()
		sparse = nil
	}

	fused := Fuse(h.config.RRFK, limit, dense, sparse)
	h.logger.Debug("retriever.fused dense=%d sparse=%d fused=%d", len(dense), len(sparse), len(fused))
	return fused, nil
}

func (h *HybridRetriever) partitionFilter(userID string) *rag.Filter {
	if h.config.PartitionKey == "" || userID == "" {
		return nil
	}
	return &rag.Filter{Must: []rag.Condition{{Key: h.config.PartitionKey, Value: userID}}}
}
