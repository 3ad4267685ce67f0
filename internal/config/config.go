package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/docindex-mcp/internal/embedder"
	"github.com/dshills/docindex-mcp/internal/fetcher"
	"github.com/dshills/docindex-mcp/internal/searcher"
)

// Environment variables read by Load
const (
	EnvOpenAIAPIKey      = embedder.EnvOpenAIAPIKey
	EnvEngine            = "GPT3_ENGINE"
	EnvOpenAIRateLimit   = "OPENAI_RATE_LIMIT"
	EnvOpenAIRatePeriod  = "OPENAI_RATE_PERIOD"
	EnvLocalRateLimit    = "LOCAL_RATE_LIMIT"
	EnvLocalRatePeriod   = "LOCAL_RATE_PERIOD"
	EnvProvider          = "DOCINDEX_EMBEDDING_PROVIDER"
	EnvJinaAPIKey        = embedder.EnvJinaAPIKey
	EnvEmbeddingBaseURL  = "DOCINDEX_EMBEDDING_BASE_URL"
	EnvDocumentRoot      = "DOCINDEX_DOCUMENT_ROOT"
	EnvAuthToken         = "DOCINDEX_AUTH_TOKEN"
	EnvHTTPAddr          = "DOCINDEX_HTTP_ADDR"
	EnvMatchThreshold    = "DOCINDEX_MATCH_THRESHOLD"
	EnvFetchRate         = "DOCINDEX_FETCH_RATE"
	EnvEmbeddingCacheLen = "DOCINDEX_EMBEDDING_CACHE_SIZE"
)

// DefaultModel is the embedding model used when GPT3_ENGINE is unset
const DefaultModel = embedder.DefaultOpenAIModel

// EmbeddingConfig selects and configures the embedding provider
type EmbeddingConfig struct {
	// Provider is openai, jina or local; empty picks by available keys
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	OpenAIKey string        `yaml:"openai_api_key"`
	JinaKey   string        `yaml:"jina_api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

// RateLimitConfig holds the embedding service budget and the local search pacing
type RateLimitConfig struct {
	// OpenAICalls is the number of embedding requests allowed per OpenAIPeriod; 0 disables
	OpenAICalls  int           `yaml:"openai_calls"`
	OpenAIPeriod time.Duration `yaml:"openai_period"`
	// LocalCalls makes search sleep LocalPeriod every LocalCalls paragraphs; 0 disables
	LocalCalls  int           `yaml:"local_calls"`
	LocalPeriod time.Duration `yaml:"local_period"`
}

// IndexConfig configures document indexes
type IndexConfig struct {
	Threshold      float64 `yaml:"threshold"`
	QueryCacheSize int     `yaml:"query_cache_size"`
}

// DocumentsConfig configures document resolution
type DocumentsConfig struct {
	Root          string  `yaml:"root"`
	FetchRate     float64 `yaml:"fetch_rate"`
	FetchBurst    int     `yaml:"fetch_burst"`
	FetchMaxBytes int64   `yaml:"fetch_max_bytes"`
}

// ServerConfig configures the MCP transport
type ServerConfig struct {
	// HTTPAddr serves streamable HTTP when set; stdio otherwise
	HTTPAddr string `yaml:"http_addr"`
	// AuthToken is the bearer token required on HTTP; empty disables the check
	AuthToken string `yaml:"auth_token"`
}

// Config is the process configuration, built once at startup
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Index     IndexConfig     `yaml:"index"`
	Documents DocumentsConfig `yaml:"documents"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:     DefaultModel,
			Timeout:   embedder.DefaultTimeout,
			CacheSize: 10000,
		},
		RateLimit: RateLimitConfig{
			OpenAIPeriod: time.Second,
			LocalPeriod:  time.Second,
		},
		Index: IndexConfig{
			Threshold:      searcher.DefaultThreshold,
			QueryCacheSize: searcher.DefaultQueryCacheSize,
		},
		Documents: DocumentsConfig{
			Root:          fetcher.DefaultDocumentRoot,
			FetchMaxBytes: fetcher.DefaultMaxBytes,
		},
	}
}

// LoadDotEnv loads .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the process environment, in that order
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	period := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := ParsePeriod(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(EnvOpenAIAPIKey, &cfg.Embedding.OpenAIKey)
	str(EnvJinaAPIKey, &cfg.Embedding.JinaKey)
	str(EnvEngine, &cfg.Embedding.Model)
	str(EnvProvider, &cfg.Embedding.Provider)
	str(EnvEmbeddingBaseURL, &cfg.Embedding.BaseURL)
	integer(EnvEmbeddingCacheLen, &cfg.Embedding.CacheSize)

	integer(EnvOpenAIRateLimit, &cfg.RateLimit.OpenAICalls)
	period(EnvOpenAIRatePeriod, &cfg.RateLimit.OpenAIPeriod)
	integer(EnvLocalRateLimit, &cfg.RateLimit.LocalCalls)
	period(EnvLocalRatePeriod, &cfg.RateLimit.LocalPeriod)

	float(EnvMatchThreshold, &cfg.Index.Threshold)

	str(EnvDocumentRoot, &cfg.Documents.Root)
	float(EnvFetchRate, &cfg.Documents.FetchRate)

	str(EnvHTTPAddr, &cfg.Server.HTTPAddr)
	str(EnvAuthToken, &cfg.Server.AuthToken)

	return errors.Join(errs...)
}

// ParsePeriod accepts a Go duration ("500ms", "1m") or a whole number of seconds
func ParsePeriod(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.RateLimit.OpenAICalls < 0 {
		errs = append(errs, fmt.Errorf("openai rate limit must not be negative, got %d", c.RateLimit.OpenAICalls))
	}
	if c.RateLimit.OpenAIPeriod <= 0 {
		errs = append(errs, fmt.Errorf("openai rate period must be positive, got %s", c.RateLimit.OpenAIPeriod))
	}
	if c.RateLimit.LocalCalls < 0 {
		errs = append(errs, fmt.Errorf("local rate limit must not be negative, got %d", c.RateLimit.LocalCalls))
	}
	if c.RateLimit.LocalPeriod <= 0 {
		errs = append(errs, fmt.Errorf("local rate period must be positive, got %s", c.RateLimit.LocalPeriod))
	}
	switch {
	case c.Index.Threshold < -1 || c.Index.Threshold > 1:
		errs = append(errs, fmt.Errorf("match threshold must be within [-1, 1], got %v", c.Index.Threshold))
	case c.Index.Threshold == 0:
		// Zero selects searcher.DefaultThreshold downstream
		errs = append(errs, errors.New("match threshold 0 is not supported; use a small non-zero value such as 0.01"))
	}
	if c.Documents.FetchRate < 0 {
		errs = append(errs, fmt.Errorf("fetch rate must not be negative, got %v", c.Documents.FetchRate))
	}
	if c.Documents.Root == "" {
		errs = append(errs, errors.New("document root must be set"))
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	return errors.Join(errs...)
}

// EmbedderConfig returns the embedder factory configuration
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		OpenAIKey: c.Embedding.OpenAIKey,
		JinaKey:   c.Embedding.JinaKey,
		Model:     c.modelFor(embedder.DetectProvider(c.embedderSelection())),
		BaseURL:   c.Embedding.BaseURL,
		Timeout:   c.Embedding.Timeout,
		CacheSize: c.Embedding.CacheSize,
	}
}

func (c *Config) embedderSelection() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		OpenAIKey: c.Embedding.OpenAIKey,
		JinaKey:   c.Embedding.JinaKey,
	}
}

// modelFor drops the OpenAI default model name for other providers so they use their own default
func (c *Config) modelFor(provider string) string {
	if provider != embedder.ProviderOpenAI && c.Embedding.Model == DefaultModel {
		return ""
	}
	return c.Embedding.Model
}

// BatchConfig returns the embedding service budget
func (c *Config) BatchConfig() embedder.BatchConfig {
	return embedder.BatchConfig{
		CallsPerPeriod: c.RateLimit.OpenAICalls,
		Period:         c.RateLimit.OpenAIPeriod,
	}
}

// FetcherConfig returns the document resolution configuration
func (c *Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		DocumentRoot:  c.Documents.Root,
		RatePerSecond: c.Documents.FetchRate,
		Burst:         c.Documents.FetchBurst,
		MaxBytes:      c.Documents.FetchMaxBytes,
	}
}

// SearcherOptions returns index options without a query embedder
func (c *Config) SearcherOptions() searcher.Options {
	return searcher.Options{
		Threshold:      c.Index.Threshold,
		QueryCacheSize: c.Index.QueryCacheSize,
	}
}

// Redacted returns a copy safe to log
func (c *Config) Redacted() Config {
	out := *c
	out.Embedding.OpenAIKey = redact(out.Embedding.OpenAIKey)
	out.Embedding.JinaKey = redact(out.Embedding.JinaKey)
	out.Server.AuthToken = redact(out.Server.AuthToken)
	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
