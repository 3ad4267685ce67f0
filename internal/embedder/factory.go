package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Environment variables holding provider credentials
const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJinaAPIKey   = "JINA_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, local; empty selects by available keys
	APIKey    string // key for the selected provider
	OpenAIKey string // used when Provider is empty
	JinaKey   string // used when Provider is empty
	Model     string
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := DetectProvider(cfg)
	apiKey := cfg.APIKey

	switch provider {
	case ProviderJina:
		if apiKey == "" {
			apiKey = cfg.JinaKey
		}
		return NewJinaProvider(ProviderConfig{
			APIKey:  apiKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, cache)
	case ProviderOpenAI:
		if apiKey == "" {
			apiKey = cfg.OpenAIKey
		}
		return NewOpenAIProvider(ProviderConfig{
			APIKey:  apiKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would use for cfg.
// Priority:
// 1. explicit Provider (jina, openai, local)
// 2. available API keys: OpenAI, then Jina
// 3. local
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}

	if cfg.OpenAIKey != "" {
		return ProviderOpenAI
	}
	if cfg.JinaKey != "" {
		return ProviderJina
	}

	return ProviderLocal
}
