package mcp

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex-mcp/internal/embedder"
	"github.com/dshills/docindex-mcp/internal/extractor"
	"github.com/dshills/docindex-mcp/internal/fetcher"
	"github.com/dshills/docindex-mcp/internal/indexer"
	"github.com/dshills/docindex-mcp/internal/storage"
)

// keywordEmbedder puts each known keyword on its own axis
type keywordEmbedder struct{}

var keywords = []string{"alpha", "beta", "gamma"}

func (keywordEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	vector := make([]float32, len(keywords))
	text := strings.ToLower(req.Text)
	for i, k := range keywords {
		if strings.Contains(text, k) {
			vector[i] = 1
		}
	}
	return &embedder.Embedding{Vector: vector, Dimension: len(keywords), Provider: "mock", Model: "keyword-v1"}, nil
}

func (e keywordEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	resp := &embedder.BatchEmbeddingResponse{Provider: "mock", Model: "keyword-v1"}
	for _, text := range req.Texts {
		emb, _ := e.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		resp.Embeddings = append(resp.Embeddings, emb)
	}
	return resp, nil
}

func (keywordEmbedder) Dimension() int   { return len(keywords) }
func (keywordEmbedder) Provider() string { return "mock" }
func (keywordEmbedder) Model() string    { return "keyword-v1" }
func (keywordEmbedder) Close() error     { return nil }

// paragraph returns a 25-word paragraph so every paragraph estimates to exactly one
func paragraph(word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", 25))
}

func setupServer(t *testing.T, authToken string) (*Server, string) {
	t.Helper()

	root := t.TempDir()
	doc := paragraph("alpha") + "\n\n" + paragraph("gamma") + extractor.PageBreak + paragraph("beta")
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.txt"), []byte(doc), 0o644))

	store := storage.NewSQLiteStorage()
	t.Cleanup(func() { _ = store.Close() })

	batch := embedder.NewBatchEmbedder(keywordEmbedder{}, embedder.BatchConfig{})
	idx := indexer.New(store, extractor.New(), batch, indexer.Config{})
	f := fetcher.New(fetcher.Config{DocumentRoot: root})

	return NewServer(idx, f, Options{AuthToken: authToken}), root
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func errorCode(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok, "expected *MCPError, got %T", err)
	return mcpErr.Code
}

func TestBuildThenSearch(t *testing.T) {
	s, root := setupServer(t, "")
	ctx := context.Background()

	result, err := s.handleBuildIndex(ctx, callTool("build_index", map[string]interface{}{"url": "report.txt"}))
	require.NoError(t, err)
	built := resultJSON(t, result)
	assert.Equal(t, "built", built["status"])
	assert.Equal(t, float64(3), built["paragraphs"])
	assert.Equal(t, false, built["cache_hit"])

	result, err = s.handleSearchIndex(ctx, callTool("search_index", map[string]interface{}{
		"url":   "report.txt",
		"query": "beta",
	}))
	require.NoError(t, err)
	found := resultJSON(t, result)
	assert.Equal(t, paragraph("beta")+"\n\n", found["matching_text"])
	assert.Equal(t, []interface{}{float64(2)}, found["matches"])

	// A second build is served from the cache file next to the document
	result, err = s.handleBuildIndex(ctx, callTool("build_index", map[string]interface{}{"url": "report.txt"}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["cache_hit"])

	_, err = os.Stat(filepath.Join(root, storage.CacheFileName))
	assert.NoError(t, err)
}

func TestSearchBeforeBuild(t *testing.T) {
	s, _ := setupServer(t, "")

	_, err := s.handleSearchIndex(context.Background(), callTool("search_index", map[string]interface{}{
		"url":   "report.txt",
		"query": "beta",
	}))
	assert.Equal(t, ErrorCodeNotIndexed, errorCode(t, err))
}

func TestParameterValidation(t *testing.T) {
	s, _ := setupServer(t, "")
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    interface{}
		code    int
	}{
		{"build without url", s.handleBuildIndex, map[string]interface{}{}, ErrorCodeInvalidParams},
		{"build with non-object arguments", s.handleBuildIndex, "report.txt", ErrorCodeInvalidParams},
		{"build missing document", s.handleBuildIndex, map[string]interface{}{"url": "missing.txt"}, ErrorCodeDocumentNotFound},
		{"search without query", s.handleSearchIndex, map[string]interface{}{"url": "report.txt"}, ErrorCodeEmptyQuery},
		{"search with blank query", s.handleSearchIndex, map[string]interface{}{"url": "report.txt", "query": "  "}, ErrorCodeEmptyQuery},
		{"status without url", s.handleGetStatus, map[string]interface{}{"url": ""}, ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: tt.args}}
			_, err := tt.handler(ctx, req)
			assert.Equal(t, tt.code, errorCode(t, err))
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	s, root := setupServer(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(root, "slides.pptx"), []byte("x"), 0o644))

	_, err := s.handleBuildIndex(context.Background(), callTool("build_index", map[string]interface{}{"url": "slides.pptx"}))
	assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, err))
}

func TestGetStatus(t *testing.T) {
	s, _ := setupServer(t, "")
	ctx := context.Background()
	args := map[string]interface{}{"url": "report.txt"}

	result, err := s.handleGetStatus(ctx, callTool("get_status", args))
	require.NoError(t, err)
	assert.Equal(t, false, resultJSON(t, result)["indexed"])

	_, err = s.handleBuildIndex(ctx, callTool("build_index", args))
	require.NoError(t, err)

	result, err = s.handleGetStatus(ctx, callTool("get_status", args))
	require.NoError(t, err)
	status := resultJSON(t, result)
	assert.Equal(t, true, status["indexed"])
	assert.Equal(t, false, status["indexing"])

	index, ok := status["index"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), index["paragraphs"])
	assert.Equal(t, float64(3), index["dimension"])
	assert.Equal(t, "keyword-v1", index["model"])
}

func TestBearerAuth(t *testing.T) {
	s, _ := setupServer(t, "s3cret")
	args := map[string]interface{}{"url": "report.txt"}

	httpCtx := func(header string) context.Context {
		r := httptest.NewRequest("POST", EndpointPath, nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		return withBearerToken(context.Background(), r)
	}

	t.Run("missing token", func(t *testing.T) {
		_, err := s.handleGetStatus(httpCtx(""), callTool("get_status", args))
		assert.Equal(t, ErrorCodeUnauthorized, errorCode(t, err))
	})

	t.Run("wrong token", func(t *testing.T) {
		_, err := s.handleBuildIndex(httpCtx("Bearer nope"), callTool("build_index", args))
		assert.Equal(t, ErrorCodeUnauthorized, errorCode(t, err))
	})

	t.Run("valid token", func(t *testing.T) {
		_, err := s.handleGetStatus(httpCtx("bearer s3cret"), callTool("get_status", args))
		assert.NoError(t, err)
	})

	t.Run("stdio is trusted", func(t *testing.T) {
		_, err := s.handleGetStatus(context.Background(), callTool("get_status", args))
		assert.NoError(t, err)
	})
}

func TestBearerAuth_Disabled(t *testing.T) {
	s, _ := setupServer(t, "")
	r := httptest.NewRequest("POST", EndpointPath, nil)

	assert.NoError(t, s.authorize(withBearerToken(context.Background(), r)))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("BEARER  abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
