package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/metering"
	pkgRetry "github.com/facundoguellutn/stoodeochat/internal/pkg/retry"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr         string        `env:"SERVER_ADDR" envDefault:":8080"`
	HTTPRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"2m"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Storage configuration
	StorageDriver       string               `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL         string               `env:"DATABASE_URL"`
	DBMaxConns          int                  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int                  `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration        `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration        `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration        `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
	DBConnectRetry      pkgRetry.RetryConfig `envPrefix:"DB_CONNECT_RETRY_"`

	// Tenants seeded into the memory driver, as id[:name] pairs.
	MemoryTenants  []string      `env:"MEMORY_TENANTS" envSeparator:","`
	TenantCacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`

	// External service configurations
	EmbeddingConnectorCfg EmbeddingConnectorConfig `envPrefix:"EMBEDDING_"`
	LLMConnectorCfg       LLMConnectorConfig       `envPrefix:"LLM_"`

	// Pipeline configuration
	RetrievalCfg RetrievalConfig `envPrefix:"RETRIEVAL_"`
	ChunkingCfg  ChunkingConfig  `envPrefix:"CHUNKING_"`
	ChannelCfg   ChannelConfig   `envPrefix:"CHANNEL_"`

	// File upload configuration
	FileUploadCfg FileUploadConfig `envPrefix:"FILE_UPLOAD_"`

	// Metered UniDoc key. DOCX export is disabled without it.
	UnidocLicenseKey string `env:"UNIDOC_LICENSE_API_KEY"`

	// Pricing overrides (loaded from JSON file)
	PricingFile string `env:"PRICING_FILE"`
	Pricing     metering.PriceTable

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Environment (set from flag, not from env var)
	Environment string
}

type EmbeddingConnectorConfig struct {
	HTTPClientConfig
	Endpoint   string `env:"ENDPOINT" envDefault:"/v1/embeddings"`
	Model      string `env:"MODEL" envDefault:"text-embedding-3-small"`
	BatchSize  int    `env:"BATCH_SIZE" envDefault:"2048"`
	Dimensions int    `env:"DIMENSIONS" envDefault:"1536"`

	// Transport-level retries of 429/5xx answers. One attempt by default:
	// ingestion callers decide whether to retry a whole run.
	RetryAttempts uint          `env:"RETRY_ATTEMPTS" envDefault:"1"`
	RetryDelay    time.Duration `env:"RETRY_DELAY" envDefault:"250ms"`
	RetryMaxDelay time.Duration `env:"RETRY_MAX_DELAY" envDefault:"2s"`
}

func (c EmbeddingConnectorConfig) Retry() pkgRetry.RetryConfig {
	return pkgRetry.RetryConfig{
		Attempts: c.RetryAttempts,
		Delay:    c.RetryDelay,
		MaxDelay: c.RetryMaxDelay,
	}
}

type LLMConnectorConfig struct {
	HTTPClientConfig
	Endpoint          string        `env:"ENDPOINT" envDefault:"/v1/chat/completions"`
	Model             string        `env:"MODEL" envDefault:"gpt-4o-mini"`
	Temperature       float64       `env:"TEMPERATURE" envDefault:"0.3"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"30s"`
	HistoryLimit      int           `env:"HISTORY_LIMIT" envDefault:"20"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"60s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"30s"`
	Token                 string        `env:"TOKEN"`
	// APIKeyHeader sends Token under this header instead of a Bearer credential.
	APIKeyHeader          string        `env:"API_KEY_HEADER"`
	Url                   string        `env:"SERVICE_URL" envDefault:"https://api.openai.com"`
}

type RetrievalConfig struct {
	Limit               int     `env:"LIMIT" envDefault:"5"`
	MaxLimit            int     `env:"MAX_LIMIT" envDefault:"50"`
	MinScore            float64 `env:"MIN_SCORE" envDefault:"0.5"`
	CandidateMultiplier int     `env:"CANDIDATE_MULTIPLIER" envDefault:"20"`
	MaxCandidates       int     `env:"MAX_CANDIDATES" envDefault:"1000"`
}

type ChunkingConfig struct {
	MinSize int `env:"MIN_SIZE" envDefault:"300"`
	MaxSize int `env:"MAX_SIZE" envDefault:"800"`
	Overlap int `env:"OVERLAP" envDefault:"100"`
}

// ChannelConfig describes the flat-fee message channel.
type ChannelConfig struct {
	MessageCost   float64 `env:"MESSAGE_COST" envDefault:"0.01"`
	Model         string  `env:"MODEL" envDefault:"twilio-whatsapp"`
	Source        string  `env:"SOURCE" envDefault:"whatsapp"`
	ReplyMaxChars int     `env:"REPLY_MAX_CHARS" envDefault:"1500"`
}

// FileUploadConfig holds file upload limits
type FileUploadConfig struct {
	MaxFileSize   int64 `env:"MAX_FILE_SIZE" envDefault:"10485760"`   // 10 MiB
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"12582912"` // 12 MiB, multipart overhead included
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	return loadFromEnv(*envFlag)
}

func loadFromEnv(environment string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = environment

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Load pricing overrides from JSON file
	if err := loadPricing(cfg); err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	case StorageDriverMemory:
	default:
		errors = append(errors, fmt.Sprintf("STORAGE_DRIVER must be postgres or memory, got %q", cfg.StorageDriver))
	}

	// Validate Database configuration
	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		errors = append(errors, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
	}

	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		errors = append(errors, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
	}

	// Validate provider configuration
	if !cfg.EnableMocks {
		if cfg.EmbeddingConnectorCfg.Url == "" {
			errors = append(errors, "EMBEDDING_SERVICE_URL is required unless ENABLE_MOCKS=true")
		}
		if cfg.LLMConnectorCfg.Url == "" {
			errors = append(errors, "LLM_SERVICE_URL is required unless ENABLE_MOCKS=true")
		}
	}

	if cfg.EmbeddingConnectorCfg.BatchSize < 1 || cfg.EmbeddingConnectorCfg.BatchSize > 2048 {
		errors = append(errors, fmt.Sprintf("EMBEDDING_BATCH_SIZE must be between 1 and 2048, got %d", cfg.EmbeddingConnectorCfg.BatchSize))
	}

	if cfg.EmbeddingConnectorCfg.Dimensions != entity.EmbeddingDimensions {
		errors = append(errors, fmt.Sprintf("EMBEDDING_DIMENSIONS must be %d to match the chunk vector column, got %d",
			entity.EmbeddingDimensions, cfg.EmbeddingConnectorCfg.Dimensions))
	}

	if cfg.LLMConnectorCfg.GenerationTimeout <= 0 {
		errors = append(errors, "LLM_GENERATION_TIMEOUT must be positive")
	}

	if cfg.LLMConnectorCfg.HistoryLimit < 0 {
		errors = append(errors, fmt.Sprintf("LLM_HISTORY_LIMIT must not be negative, got %d", cfg.LLMConnectorCfg.HistoryLimit))
	}

	// Validate retrieval configuration
	r := cfg.RetrievalCfg
	if r.Limit < 1 || r.Limit > r.MaxLimit {
		errors = append(errors, fmt.Sprintf("RETRIEVAL_LIMIT must be between 1 and RETRIEVAL_MAX_LIMIT(%d), got %d", r.MaxLimit, r.Limit))
	}
	if r.MinScore < -1 || r.MinScore > 1 {
		errors = append(errors, fmt.Sprintf("RETRIEVAL_MIN_SCORE must be between -1 and 1, got %g", r.MinScore))
	}
	if r.CandidateMultiplier < 1 {
		errors = append(errors, fmt.Sprintf("RETRIEVAL_CANDIDATE_MULTIPLIER must be at least 1, got %d", r.CandidateMultiplier))
	}
	if r.MaxCandidates < r.MaxLimit || r.MaxCandidates > entity.MaxVectorCandidates {
		errors = append(errors, fmt.Sprintf("RETRIEVAL_MAX_CANDIDATES must be between RETRIEVAL_MAX_LIMIT(%d) and %d, got %d",
			r.MaxLimit, entity.MaxVectorCandidates, r.MaxCandidates))
	}

	// Validate chunking configuration
	c := cfg.ChunkingCfg
	if c.MaxSize < 1 {
		errors = append(errors, fmt.Sprintf("CHUNKING_MAX_SIZE must be positive, got %d", c.MaxSize))
	}
	if c.MinSize < 0 || c.MinSize > c.MaxSize {
		errors = append(errors, fmt.Sprintf("CHUNKING_MIN_SIZE must be between 0 and CHUNKING_MAX_SIZE(%d), got %d", c.MaxSize, c.MinSize))
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxSize {
		errors = append(errors, fmt.Sprintf("CHUNKING_OVERLAP must be between 0 and CHUNKING_MAX_SIZE(%d) exclusive, got %d", c.MaxSize, c.Overlap))
	}

	if cfg.ChannelCfg.MessageCost < 0 {
		errors = append(errors, fmt.Sprintf("CHANNEL_MESSAGE_COST must not be negative, got %g", cfg.ChannelCfg.MessageCost))
	}

	if cfg.FileUploadCfg.MaxFileSize < 1 || cfg.FileUploadCfg.MaxUploadSize < cfg.FileUploadCfg.MaxFileSize {
		errors = append(errors, "FILE_UPLOAD_MAX_FILE_SIZE must be positive and not above FILE_UPLOAD_MAX_UPLOAD_SIZE")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func loadPricing(cfg *Config) error {
	if cfg.PricingFile == "" {
		cfg.Pricing = metering.DefaultPriceTable()
		return nil
	}

	prices, err := metering.LoadPriceTable(cfg.PricingFile)
	if err != nil {
		return err
	}

	cfg.Pricing = prices

	fmt.Printf("Loaded %d model prices from %s\n", len(cfg.Pricing), cfg.PricingFile)
	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
