// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (DOCBASE_* runtime override)
//  2. Config file (~/.docbase/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, embedder model
//   - Storage: PostgreSQL connection for the relational and vector schemas
//   - Chunking: default chunk size and overlap applied when a project or
//     request does not override them
//   - Retrieval: default strategy parameters (top_k, MMR lambda, hybrid
//     weighting)
//   - Ingest: worker pool sizing for background ingestion
//
// Error handling uses sentinel errors so callers can match with errors.Is.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidChunkOverlap indicates the overlap is negative or >= chunk size.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidTopK indicates the retrieval top_k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMMRLambda indicates the MMR lambda is outside [0, 1].
	ErrInvalidMMRLambda = errors.New("invalid mmr lambda")

	// ErrInvalidHybridAlpha indicates the hybrid dense weight is outside [0, 1].
	ErrInvalidHybridAlpha = errors.New("invalid hybrid alpha")

	// ErrInvalidWorkerCount indicates the ingest worker count is out of range.
	ErrInvalidWorkerCount = errors.New("invalid worker count")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions, which
	// matches the vector schema (see vectorstore.Dimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultGenerationModel is the default generation model.
	DefaultGenerationModel = "gemini-2.5-flash"

	// DefaultChunkSize is the chunk body size in characters applied when
	// neither the project nor the request specifies one.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of characters shared by adjacent
	// chunks when not specified.
	DefaultChunkOverlap = 200

	// MaxChunkSize bounds chunk size to keep chunks embeddable.
	MaxChunkSize = 8000

	// MaxTopK bounds retrieval result counts.
	MaxTopK = 20
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider        string `mapstructure:"provider" json:"provider"`
	GenerationModel string `mapstructure:"generation_model" json:"generation_model"`
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Upload storage (where uploaded source files live on disk)
	UploadDir string `mapstructure:"upload_dir" json:"upload_dir"`

	// Chunking defaults
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval defaults
	TopK        int     `mapstructure:"top_k" json:"top_k"`
	MMRLambda   float64 `mapstructure:"mmr_lambda" json:"mmr_lambda"`
	HybridAlpha float64 `mapstructure:"hybrid_alpha" json:"hybrid_alpha"`

	// Embedding call rate limit (requests per second, 0 = unlimited)
	EmbedRateLimit float64 `mapstructure:"embed_rate_limit" json:"embed_rate_limit"`

	// Ingestion worker pool
	IngestWorkers   int `mapstructure:"ingest_workers" json:"ingest_workers"`
	IngestQueueSize int `mapstructure:"ingest_queue_size" json:"ingest_queue_size"`

	// Observability
	OTLPEndpoint   string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	TracingEnabled bool   `mapstructure:"tracing_enabled" json:"tracing_enabled"`
}

// Load reads configuration from file and environment, applies defaults,
// and validates the result.
func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()

	viper.SetEnvPrefix("DOCBASE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Missing file is fine: defaults + environment apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Dir returns the docbase configuration directory (~/.docbase), creating
// it with restrictive permissions if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".docbase")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("generation_model", DefaultGenerationModel)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "docbase")
	viper.SetDefault("postgres_password", "docbase_dev_password")
	viper.SetDefault("postgres_db_name", "docbase")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("upload_dir", "uploads")

	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)

	viper.SetDefault("top_k", 5)
	viper.SetDefault("mmr_lambda", 0.5)
	viper.SetDefault("hybrid_alpha", 0.7)
	viper.SetDefault("embed_rate_limit", 10.0)

	viper.SetDefault("ingest_workers", 2)
	viper.SetDefault("ingest_queue_size", 64)

	viper.SetDefault("otlp_endpoint", "localhost:4318")
	viper.SetDefault("tracing_enabled", false)
}

// ConnString builds a PostgreSQL connection string from the storage fields.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode,
	)
}
