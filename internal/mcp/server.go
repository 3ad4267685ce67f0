package mcp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docindex-mcp/internal/fetcher"
	"github.com/dshills/docindex-mcp/internal/indexer"
	"github.com/dshills/docindex-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "docindex-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// EndpointPath is where the streamable HTTP transport is mounted
	EndpointPath = "/mcp"
)

// Options configures a Server
type Options struct {
	// AuthToken is the bearer token HTTP callers must present; empty disables the check
	AuthToken string
	Logger    *log.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	indexer   *indexer.Indexer
	fetcher   *fetcher.Fetcher
	authToken string
	logger    *log.Logger
}

// NewServer creates a new MCP server instance
func NewServer(idx *indexer.Indexer, f *fetcher.Fetcher, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:       mcpServer,
		indexer:   idx,
		fetcher:   f,
		authToken: opts.AuthToken,
		logger:    logger,
	}

	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(s.logger)

	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ServeHTTP runs the streamable HTTP transport on addr until ctx is cancelled
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath(EndpointPath),
		server.WithHTTPContextFunc(withBearerToken),
	)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s%s", addr, EndpointPath)
		errCh <- httpServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http transport: %w", err)
		}
		return nil
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(buildIndexTool(), s.handleBuildIndex)
	s.mcp.AddTool(searchIndexTool(), s.handleSearchIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// bearerKey carries the Authorization bearer token of an HTTP request
type bearerKey struct{}

// withBearerToken copies the request's bearer token into the tool call context
func withBearerToken(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, bearerKey{}, bearerToken(r.Header.Get("Authorization")))
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// authorize checks the HTTP bearer token. Stdio calls carry no token and are trusted.
func (s *Server) authorize(ctx context.Context) error {
	if s.authToken == "" {
		return nil
	}
	token, fromHTTP := ctx.Value(bearerKey{}).(string)
	if !fromHTTP {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return types.ErrAuth
	}
	return nil
}
