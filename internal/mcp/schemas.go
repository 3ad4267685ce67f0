package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// buildIndexTool returns the tool definition for build_index
func buildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "build_index",
		Description: "Extract, embed and cache a document so it can be searched",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Document URL to download, or a file name under the document root",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed the document even when a cached index exists",
					"default":     false,
				},
			},
			Required: []string{"url"},
		},
	}
}

// searchIndexTool returns the tool definition for search_index
func searchIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_index",
		Description: "Return every paragraph of an indexed document that matches a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Document URL or file name previously passed to build_index",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
			},
			Required: []string{"url", "query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report whether a document is indexed and describe its cache entry",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Document URL or file name",
				},
			},
			Required: []string{"url"},
		},
	}
}
