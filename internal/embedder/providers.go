package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hashed-bow"

	// Default endpoints
	DefaultJinaBaseURL = "https://api.jina.ai/v1"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	MaxBatchSize = 100

	// DefaultTimeout bounds a single provider request
	DefaultTimeout = 30 * time.Second
)

// ProviderConfig configures a remote provider
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string // Optional: override the service endpoint
	Timeout time.Duration
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// generateOne embeds a single text through a provider's batch call
func generateOne(ctx context.Context, e Embedder, cache *Cache, req EmbeddingRequest) (*Embedding, error) {
	model := req.Model
	if model == "" {
		model = e.Model()
	}

	if cache != nil {
		if emb, ok := cache.Get(model, req.Text); ok {
			return emb, nil
		}
	}

	resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

// cacheBatch records content hashes and stores successful embeddings per model
func cacheBatch(cache *Cache, model string, texts []string, embeddings []*Embedding) {
	for i, emb := range embeddings {
		emb.ContentHash = TextHash(texts[i])
		if cache != nil {
			cache.Set(model, texts[i], emb)
		}
	}
}

// OpenAIProvider implements Embedder using the OpenAI embeddings API
type OpenAIProvider struct {
	client openai.Client
	model  string
	cache  *Cache
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(cfg ProviderConfig, cache *Cache) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	// No retries; the batch limiter owns call spacing
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.timeout()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
		cache:  cache,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return generateOne(ctx, o, o.cache, req)
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: wireTexts(req.Texts)},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	if len(resp.Data) != len(req.Texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(resp.Data), len(req.Texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	embeddings := make([]*Embedding, len(data))
	for i, d := range data {
		vector := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vector[j] = float32(v)
		}
		embeddings[i] = &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOpenAI,
			Model:     model,
		}
	}

	cacheBatch(o.cache, model, req.Texts, embeddings)

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOpenAI,
		Model:      model,
	}, nil
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}

// JinaProvider implements Embedder using Jina AI API
type JinaProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	cache      *Cache
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(cfg ProviderConfig, cache *Cache) (*JinaProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultJinaModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultJinaBaseURL
	}

	return &JinaProvider{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.timeout(),
		},
		cache: cache,
	}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return generateOne(ctx, j, j.cache, req)
}

func (j *JinaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = j.model
	}

	embeddings, err := j.callAPI(ctx, wireTexts(req.Texts), model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	cacheBatch(j.cache, model, req.Texts, embeddings)

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderJina,
		Model:      model,
	}, nil
}

func (j *JinaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(apiResp.Data), len(texts))
	}

	embeddings := make([]*Embedding, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		embeddings[data.Index] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderJina,
			Model:     model,
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("missing embedding for text %d", i)
		}
	}

	return embeddings, nil
}

func (j *JinaProvider) Dimension() int {
	return JinaDimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds text offline by hashing lower-cased words into a fixed
// number of buckets. Texts that share words get similar vectors, which is enough
// for development and tests without an API key.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: DefaultLocalModel,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.cache != nil {
		if emb, ok := l.cache.Get(l.model, req.Text); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:      HashedBagOfWords(req.Text, LocalDimension),
		Dimension:   LocalDimension,
		Provider:    ProviderLocal,
		Model:       l.model,
		ContentHash: TextHash(req.Text),
	}

	if l.cache != nil {
		l.cache.Set(l.model, req.Text, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// HashedBagOfWords maps each lower-cased word of text to one of dim buckets and
// returns the unit-length count vector. Text without words maps to the zero vector.
func HashedBagOfWords(text string, dim int) []float32 {
	vector := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vector[h.Sum32()%uint32(dim)]++
	}
	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
