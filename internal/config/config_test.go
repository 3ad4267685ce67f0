package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex-mcp/internal/embedder"
	"github.com/dshills/docindex-mcp/internal/searcher"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Embedding.Model)
	assert.Equal(t, 0, cfg.RateLimit.OpenAICalls)
	assert.Equal(t, time.Second, cfg.RateLimit.OpenAIPeriod)
	assert.Equal(t, 0, cfg.RateLimit.LocalCalls)
	assert.Equal(t, time.Second, cfg.RateLimit.LocalPeriod)
	assert.Equal(t, searcher.DefaultThreshold, cfg.Index.Threshold)
	assert.Equal(t, "path/to/documents", cfg.Documents.Root)
	assert.Empty(t, cfg.Server.HTTPAddr)
}

func TestLoad_Env(t *testing.T) {
	cfg, err := LoadWithEnv("", envMap(map[string]string{
		EnvOpenAIAPIKey:     "sk-test",
		EnvEngine:           "text-embedding-3-large",
		EnvOpenAIRateLimit:  "3",
		EnvOpenAIRatePeriod: "60",
		EnvLocalRateLimit:   "10",
		EnvLocalRatePeriod:  "250ms",
		EnvMatchThreshold:   "0.8",
		EnvDocumentRoot:     "/srv/docs",
		EnvAuthToken:        "secret",
		EnvHTTPAddr:         ":8080",
		EnvFetchRate:        "2.5",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Embedding.OpenAIKey)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 3, cfg.RateLimit.OpenAICalls)
	assert.Equal(t, time.Minute, cfg.RateLimit.OpenAIPeriod)
	assert.Equal(t, 10, cfg.RateLimit.LocalCalls)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.LocalPeriod)
	assert.Equal(t, 0.8, cfg.Index.Threshold)
	assert.Equal(t, "/srv/docs", cfg.Documents.Root)
	assert.Equal(t, "secret", cfg.Server.AuthToken)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 2.5, cfg.Documents.FetchRate)

	bc := cfg.BatchConfig()
	assert.Equal(t, 3, bc.CallsPerPeriod)
	assert.Equal(t, time.Minute, bc.Period)

	ec := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderOpenAI, embedder.DetectProvider(ec))
	assert.Equal(t, "text-embedding-3-large", ec.Model)

	fc := cfg.FetcherConfig()
	assert.Equal(t, "/srv/docs", fc.DocumentRoot)
	assert.Equal(t, 2.5, fc.RatePerSecond)
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric limit", map[string]string{EnvOpenAIRateLimit: "lots"}},
		{"bad period", map[string]string{EnvLocalRatePeriod: "soon"}},
		{"zero period", map[string]string{EnvOpenAIRatePeriod: "0"}},
		{"negative limit", map[string]string{EnvLocalRateLimit: "-1"}},
		{"threshold out of range", map[string]string{EnvMatchThreshold: "1.5"}},
		{"zero threshold", map[string]string{EnvMatchThreshold: "0"}},
		{"unknown provider", map[string]string{EnvProvider: "cohere"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv("", envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedding:
  provider: local
rate_limit:
  local_calls: 5
  local_period: 2s
index:
  threshold: 0.6
documents:
  root: /data
`), 0o644))

	cfg, err := LoadWithEnv(path, envMap(map[string]string{EnvDocumentRoot: "/override"}))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 5, cfg.RateLimit.LocalCalls)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.LocalPeriod)
	assert.Equal(t, 0.6, cfg.Index.Threshold)
	assert.Equal(t, "/override", cfg.Documents.Root, "environment wins over the file")
	assert.Equal(t, time.Second, cfg.RateLimit.OpenAIPeriod, "unset keys keep defaults")

	ec := cfg.EmbedderConfig()
	assert.Empty(t, ec.Model, "local provider uses its own default model")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	assert.Error(t, err)
}

func TestParsePeriod(t *testing.T) {
	d, err := ParsePeriod("2")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	d, err = ParsePeriod(" 1m30s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParsePeriod("x")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOCINDEX_TEST_DOTENV=from-file\n"), 0o644))

	t.Setenv("DOCINDEX_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DOCINDEX_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("DOCINDEX_TEST_DOTENV"))
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Embedding.OpenAIKey = "sk-live"
	cfg.Server.AuthToken = "token"

	r := cfg.Redacted()
	assert.Equal(t, "***", r.Embedding.OpenAIKey)
	assert.Equal(t, "***", r.Server.AuthToken)
	assert.Empty(t, r.Embedding.JinaKey)
	assert.Equal(t, "sk-live", cfg.Embedding.OpenAIKey, "original untouched")
}
