package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docindex-mcp/internal/extractor"
	"github.com/dshills/docindex-mcp/internal/indexer"
	"github.com/dshills/docindex-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound   = -32001 // Document could not be fetched or read
	ErrorCodeIndexingInProgress = -32002 // Another build of the document is already running
	ErrorCodeNotIndexed         = -32003 // Document not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeUnauthorized       = -32005 // Bearer token missing or wrong
)

// handleBuildIndex handles the build_index tool invocation
func (s *Server) handleBuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, toMCPError(err)
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	ref, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}
	force := getBoolDefault(args, "force", false)

	path, err := s.fetcher.Resolve(ctx, ref)
	if err != nil {
		return nil, toMCPError(err)
	}

	_, stats, err := s.indexer.BuildDocumentIndex(ctx, path, indexer.BuildOptions{Force: force})
	if err != nil {
		s.logger.Printf("build_index %s: %v", ref, err)
		return nil, toMCPError(err)
	}

	response := map[string]interface{}{
		"status":      "built",
		"document":    stats.DocumentPath,
		"paragraphs":  stats.Paragraphs,
		"pages":       stats.Pages,
		"cache_hit":   stats.CacheHit,
		"requests":    stats.Embedding.Requests,
		"duration_ms": stats.Duration.Milliseconds(),
		"run_id":      stats.RunID,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchIndex handles the search_index tool invocation
func (s *Server) handleSearchIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, toMCPError(err)
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	ref, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	// Search reads the copy fetched by build_index; it never downloads
	path, err := s.fetcher.LocalPath(ref)
	if err != nil {
		return nil, toMCPError(err)
	}

	result, err := s.indexer.SearchDocumentIndex(ctx, path, query)
	if err != nil {
		s.logger.Printf("search_index %s: %v", ref, err)
		return nil, toMCPError(err)
	}

	response := map[string]interface{}{
		"matching_text": result.MatchingText,
		"matches":       result.Matches,
		"paragraphs":    result.Paragraphs,
		"stale":         result.Stale,
		"duration_ms":   result.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, toMCPError(err)
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	ref, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}

	path, err := s.fetcher.LocalPath(ref)
	if err != nil {
		return nil, toMCPError(err)
	}

	status, err := s.indexer.Status(ctx, path)
	if errors.Is(err, types.ErrNotIndexed) {
		response := map[string]interface{}{
			"indexed":  false,
			"indexing": s.indexer.Indexing(path),
			"document": path,
			"message":  "Document not indexed. Use build_index to index it.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, toMCPError(err)
	}

	response := map[string]interface{}{
		"indexed":  true,
		"indexing": s.indexer.Indexing(path),
		"document": status.DocumentPath,
		"cache": map[string]interface{}{
			"path":          status.CachePath,
			"size_mb":       fmt.Sprintf("%.2f", status.CacheSizeMB),
			"content_hash":  fmt.Sprintf("%x", status.ContentHash),
			"last_built_at": status.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"index": map[string]interface{}{
			"paragraphs": status.Paragraphs,
			"dimension":  status.Index.Dimension,
			"threshold":  status.Index.Threshold,
			"provider":   status.Index.Provider,
			"model":      status.Index.Model,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps pipeline errors onto MCP error codes
func toMCPError(err error) error {
	data := map[string]interface{}{"error": err.Error()}

	switch {
	case errors.Is(err, types.ErrAuth):
		return newMCPError(ErrorCodeUnauthorized, "unauthorized", nil)
	case errors.Is(err, types.ErrNotIndexed):
		return newMCPError(ErrorCodeNotIndexed, "document not indexed; call build_index first", data)
	case errors.Is(err, types.ErrIndexingInProgress):
		return newMCPError(ErrorCodeIndexingInProgress, "document is already being indexed", data)
	case errors.Is(err, types.ErrEmptyContent):
		return newMCPError(ErrorCodeEmptyQuery, "query cannot be empty", data)
	case errors.Is(err, extractor.ErrUnsupportedFormat):
		return newMCPError(ErrorCodeInvalidParams, "unsupported document format", data)
	case errors.Is(err, types.ErrIO):
		return newMCPError(ErrorCodeDocumentNotFound, "document unavailable", data)
	case errors.Is(err, types.ErrEmbeddingService):
		return newMCPError(ErrorCodeInternalError, "embedding service failed", data)
	case errors.Is(err, types.ErrResolution):
		return newMCPError(ErrorCodeInternalError, "failed to map matches back to the document", data)
	default:
		return newMCPError(ErrorCodeInternalError, "internal error", data)
	}
}

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}
