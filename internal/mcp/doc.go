// Package mcp implements the Model Context Protocol (MCP) server for docindex.
//
// The server exposes three tools:
//   - build_index: Fetch a document, embed its paragraphs and cache the index
//   - search_index: Return the paragraphs of an indexed document matching a query
//   - get_status: Check whether a document is indexed and describe its cache entry
//
// # Transports
//
// By default the server speaks JSON-RPC 2.0 over stdio:
//
//	docindex serve
//
// With --http it serves the streamable HTTP transport at /mcp instead:
//
//	docindex serve --http :8080
//
// When an auth token is configured, every HTTP tool call must carry
// "Authorization: Bearer <token>". Stdio calls are not checked.
//
// # Tool: build_index
//
//	Request:
//	{
//	  "name": "build_index",
//	  "arguments": {
//	    "url": "https://example.com/files/report.pdf",
//	    "force": false
//	  }
//	}
//
//	Response:
//	{
//	  "status": "built",
//	  "document": "/srv/docs/report.pdf",
//	  "paragraphs": 412,
//	  "pages": 37,
//	  "cache_hit": false,
//	  "requests": 412,
//	  "duration_ms": 8123,
//	  "run_id": "5f0c..."
//	}
//
// A url starting with "http" is downloaded into the document root; anything
// else names a file already there.
//
// # Tool: search_index
//
//	Request:
//	{
//	  "name": "search_index",
//	  "arguments": {
//	    "url": "https://example.com/files/report.pdf",
//	    "query": "quarterly revenue"
//	  }
//	}
//
//	Response:
//	{
//	  "matching_text": "Revenue grew 12% ...\n\n",
//	  "matches": [117],
//	  "paragraphs": 412,
//	  "stale": false,
//	  "duration_ms": 35
//	}
//
// # Client Configuration
//
//	{
//	  "mcpServers": {
//	    "docindex": {
//	      "command": "/usr/local/bin/docindex",
//	      "args": ["serve"],
//	      "env": {
//	        "OPENAI_API_KEY": "your-api-key",
//	        "DOCINDEX_DOCUMENT_ROOT": "/srv/docs"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Tool failures are returned as MCPError values with these codes:
//
//	-32602  invalid parameters or unsupported document format
//	-32603  internal error (embedding service, resolution)
//	-32001  document could not be fetched or read
//	-32002  a build of the document is already running
//	-32003  document not indexed
//	-32004  empty query
//	-32005  unauthorized
package mcp
