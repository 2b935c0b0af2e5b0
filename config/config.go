// Package config loads campusrag settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallnest/campusrag/log"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Memory    MemoryConfig    `yaml:"memory"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// IndexAPIKey protects the index endpoint when set.
	IndexAPIKey string `yaml:"index_api_key"`
	RenderHTML  bool   `yaml:"render_html"`
}

type LLMConfig struct {
	BaseURL      string  `yaml:"base_url"`
	APIKey       string  `yaml:"api_key"`
	Model        string  `yaml:"model"`
	SummaryModel string  `yaml:"summary_model"`
	RouterModel  string  `yaml:"router_model"`
	TitleModel   string  `yaml:"title_model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	// TopK is the default retrieval depth when a request has none.
	TopK int `yaml:"top_k"`
}

type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	BatchSize int           `yaml:"batch_size"`
	Pause     time.Duration `yaml:"pause"`
}

type QdrantConfig struct {
	URL          string `yaml:"url"`
	APIKey       string `yaml:"api_key"`
	Collection   string `yaml:"collection"`
	DenseName    string `yaml:"dense_name"`
	SparseName   string `yaml:"sparse_name"`
	HNSWEf       int    `yaml:"hnsw_ef"`
	PartitionKey string `yaml:"partition_key"`
	// ScoreThreshold is the per-mode floor sent to Qdrant, on the backend's
	// own score scale. Zero omits it.
	ScoreThreshold float64 `yaml:"score_threshold"`
}

type RetrievalConfig struct {
	PoolSize        int     `yaml:"pool_size"`
	RRFK            int     `yaml:"rrf_k"`
	ScoreThreshold  float64 `yaml:"score_threshold"`
	MaxDocs         int     `yaml:"max_docs"`
	MaxPerDoc       int     `yaml:"max_per_doc"`
	Budget          int     `yaml:"budget"`
	SnippetLimit    int     `yaml:"snippet_limit"`
	SummaryLimit    int     `yaml:"summary_limit"`
	TranscriptLimit int     `yaml:"transcript_limit"`
}

type MemoryConfig struct {
	Window          int `yaml:"window"`
	MaxTurns        int `yaml:"max_turns"`
	PriorLimit      int `yaml:"prior_limit"`
	TranscriptLimit int `yaml:"transcript_limit"`
	SummaryLimit    int `yaml:"summary_limit"`
	MaxTokens       int `yaml:"max_tokens"`
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	// RelayEvents publishes message events over Redis pub/sub so that
	// summaries can be built by another process.
	RelayEvents bool `yaml:"relay_events"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type SQLiteConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		LLM: LLMConfig{
			BaseURL:   "https://api.publicai.co/v1",
			Model:     "swiss-ai/apertus-8b-instruct",
			MaxTokens: 280,
		},
		Embedding: EmbeddingConfig{
			BatchSize: 16,
			Pause:     150 * time.Millisecond,
		},
		Qdrant: QdrantConfig{
			URL:            "http://localhost:6333",
			Collection:     "campus",
			DenseName:      "dense",
			SparseName:     "sparse",
			ScoreThreshold: 0.35,
		},
		Retrieval: RetrievalConfig{
			PoolSize:        24,
			RRFK:            60,
			ScoreThreshold:  0.35,
			MaxDocs:         3,
			MaxPerDoc:       2,
			Budget:          1600,
			SnippetLimit:    600,
			SummaryLimit:    2000,
			TranscriptLimit: 1500,
		},
		Memory: MemoryConfig{
			Window:          20,
			MaxTurns:        8,
			PriorLimit:      800,
			TranscriptLimit: 1500,
			SummaryLimit:    1200,
			MaxTokens:       220,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "campusrag:"},
			Postgres: PostgresConfig{
				Table: "messages",
			},
			SQLite: SQLiteConfig{Path: "campusrag.db", Table: "messages"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (optional) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with
// lookup. Unparsable numbers are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			}
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(name); ok && v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	str("OPENAI_BASE_URL", &c.LLM.BaseURL)
	str("OPENAI_API_KEY", &c.LLM.APIKey)
	str("APERTUS_MODEL_ID", &c.LLM.Model)
	str("APERTUS_SUMMARY_MODEL_ID", &c.LLM.SummaryModel)
	str("APERTUS_ROUTER_MODEL_ID", &c.LLM.RouterModel)
	float("APERTUS_TEMPERATURE", &c.LLM.Temperature)
	integer("APERTUS_MAX_TOKENS", &c.LLM.MaxTokens)
	integer("APERTUS_TOPK", &c.LLM.TopK)

	str("EMBED_BASE_URL", &c.Embedding.BaseURL)
	str("EMBED_API_KEY", &c.Embedding.APIKey)
	str("EMBED_MODEL_ID", &c.Embedding.Model)

	str("QDRANT_URL", &c.Qdrant.URL)
	str("QDRANT_API_KEY", &c.Qdrant.APIKey)
	str("QDRANT_COLLECTION", &c.Qdrant.Collection)

	str("INDEX_API_KEY", &c.Server.IndexAPIKey)
	str("CAMPUSRAG_ADDR", &c.Server.Addr)
	str("CAMPUSRAG_STORE", &c.Store.Backend)
	str("CAMPUSRAG_REDIS_ADDR", &c.Store.Redis.Addr)
	str("CAMPUSRAG_POSTGRES_URL", &c.Store.Postgres.ConnString)
	str("CAMPUSRAG_SQLITE_PATH", &c.Store.SQLite.Path)
	str("CAMPUSRAG_LOG_LEVEL", &c.Log.Level)
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"retrieval.pool_size", c.Retrieval.PoolSize},
		{"retrieval.rrf_k", c.Retrieval.RRFK},
		{"retrieval.max_docs", c.Retrieval.MaxDocs},
		{"retrieval.max_per_doc", c.Retrieval.MaxPerDoc},
		{"retrieval.budget", c.Retrieval.Budget},
		{"retrieval.snippet_limit", c.Retrieval.SnippetLimit},
		{"retrieval.summary_limit", c.Retrieval.SummaryLimit},
		{"retrieval.transcript_limit", c.Retrieval.TranscriptLimit},
		{"memory.window", c.Memory.Window},
		{"memory.max_turns", c.Memory.MaxTurns},
		{"memory.prior_limit", c.Memory.PriorLimit},
		{"memory.transcript_limit", c.Memory.TranscriptLimit},
		{"memory.summary_limit", c.Memory.SummaryLimit},
		{"memory.max_tokens", c.Memory.MaxTokens},
		{"llm.max_tokens", c.LLM.MaxTokens},
		{"embedding.batch_size", c.Embedding.BatchSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", p.name, p.value)
		}
	}
	if c.Qdrant.ScoreThreshold < 0 {
		return fmt.Errorf("qdrant.score_threshold must be >= 0, got %g", c.Qdrant.ScoreThreshold)
	}
	if c.LLM.TopK < 0 {
		return fmt.Errorf("llm.top_k must be >= 0, got %d", c.LLM.TopK)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}

	switch strings.ToLower(c.Store.Backend) {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.ConnString == "" {
			return fmt.Errorf("store.postgres.conn_string is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.RelayEvents && c.Store.Redis.Addr == "" {
		return fmt.Errorf("store.relay_events needs store.redis.addr")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// EmbeddingBaseURL falls back to the chat base URL.
func (c Config) EmbeddingBaseURL() string {
	if c.Embedding.BaseURL != "" {
		return c.Embedding.BaseURL
	}
	return c.LLM.BaseURL
}

// EmbeddingAPIKey falls back to the chat API key.
func (c Config) EmbeddingAPIKey() string {
	if c.Embedding.APIKey != "" {
		return c.Embedding.APIKey
	}
	return c.LLM.APIKey
}

// TitleModel falls back to the answer model.
func (c Config) TitleModel() string {
	if c.LLM.TitleModel != "" {
		return c.LLM.TitleModel
	}
	return c.LLM.Model
}
