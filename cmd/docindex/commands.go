package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docindex-mcp/internal/embedder"
	"github.com/dshills/docindex-mcp/internal/indexer"
	"github.com/dshills/docindex-mcp/internal/mcp"
	"github.com/dshills/docindex-mcp/internal/storage"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server.

By default the server communicates over stdio. Use --http (or
DOCINDEX_HTTP_ADDR) to serve the streamable HTTP transport instead; set
DOCINDEX_AUTH_TOKEN to require a bearer token on every HTTP tool call.

Examples:
  docindex serve
  docindex serve --http :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(a *app) error {
				addr := a.cfg.Server.HTTPAddr
				if httpAddr != "" {
					addr = httpAddr
				}

				a.logger.Printf("DocIndex MCP Server v%s starting (build mode %s, driver %s, provider %s)",
					version, storage.BuildMode, storage.DriverName, a.batch.Embedder().Provider())

				server := mcp.NewServer(a.indexer, a.fetcher, mcp.Options{
					AuthToken: a.cfg.Server.AuthToken,
					Logger:    a.logger,
				})

				var err error
				if addr != "" {
					err = server.ServeHTTP(cmd.Context(), addr)
				} else {
					a.logger.Println("MCP server ready, listening on stdio...")
					err = server.Serve(cmd.Context())
				}
				a.logger.Println("Server stopped")
				return err
			})
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}

func newBuildCmd(flags *rootFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build <url|file>...",
		Short: "Build or refresh document indexes",
		Long: `Fetch each document, embed its paragraphs and cache the index next to it.
A document whose cached index is still current is not re-embedded unless
--force is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(a *app) error {
				paths := make([]string, 0, len(args))
				for _, ref := range args {
					path, err := a.fetcher.Resolve(cmd.Context(), ref)
					if err != nil {
						return err
					}
					paths = append(paths, path)
				}

				results, err := a.indexer.BuildDocumentIndexes(cmd.Context(), paths, indexer.BuildOptions{Force: force})
				if err != nil {
					return fmt.Errorf("build failed: %w", err)
				}

				for _, stats := range results {
					source := "embedded"
					if stats.CacheHit {
						source = "cached"
					}
					cmd.Printf("%s: %d paragraphs, %d pages, %s in %v\n",
						stats.DocumentPath, stats.Paragraphs, stats.Pages, source, stats.Duration.Round(time.Millisecond))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-embed even when the cached index is current")
	return cmd
}

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <url|file> <query>",
		Short: "Search an indexed document",
		Long: `Print every paragraph of the document that matches the query, in document
order. The document must have been built first.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(a *app) error {
				path, err := a.fetcher.LocalPath(args[0])
				if err != nil {
					return err
				}
				query := strings.Join(args[1:], " ")

				result, err := a.indexer.SearchDocumentIndex(cmd.Context(), path, query)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				if result.Stale {
					a.logger.Printf("warning: %s changed since it was indexed; run build to refresh", path)
				}

				if asJSON {
					data, err := json.MarshalIndent(map[string]interface{}{
						"matching_text": result.MatchingText,
						"matches":       result.Matches,
						"paragraphs":    result.Paragraphs,
						"stale":         result.Stale,
					}, "", "  ")
					if err != nil {
						return fmt.Errorf("failed to marshal result: %w", err)
					}
					cmd.Println(string(data))
					return nil
				}

				if result.MatchingText == "" {
					cmd.Println("No matching paragraphs.")
					return nil
				}
				cmd.Print(result.MatchingText)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output the result as JSON")
	return cmd
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <url|file>",
		Short: "Show the cached index of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(a *app) error {
				path, err := a.fetcher.LocalPath(args[0])
				if err != nil {
					return err
				}
				status, err := a.indexer.Status(cmd.Context(), path)
				if err != nil {
					return err
				}

				cmd.Printf("Document:   %s\n", status.DocumentPath)
				cmd.Printf("Cache:      %s (%.2f MB)\n", status.CachePath, status.CacheSizeMB)
				cmd.Printf("Paragraphs: %d\n", status.Paragraphs)
				cmd.Printf("Model:      %s/%s (%d dimensions)\n", status.Index.Provider, status.Index.Model, status.Index.Dimension)
				cmd.Printf("Threshold:  %.2f\n", status.Index.Threshold)
				cmd.Printf("Built:      %s\n", status.UpdatedAt.Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
}

func newForgetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <url|file>",
		Short: "Remove a document's cached index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(a *app) error {
				path, err := a.fetcher.LocalPath(args[0])
				if err != nil {
					return err
				}
				if err := a.indexer.Forget(cmd.Context(), path); err != nil {
					return err
				}
				cmd.Printf("Removed cached index for %s\n", path)
				return nil
			})
		},
	}
}

func newEmbedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text>",
		Short: "Embed text with the configured provider",
		Long:  `Generate one embedding to check provider credentials and connectivity.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(a *app) error {
				emb := a.batch.Embedder()
				cmd.Printf("Provider: %s\n", emb.Provider())
				cmd.Printf("Model:    %s\n", emb.Model())

				result, err := emb.GenerateEmbedding(cmd.Context(), embedder.EmbeddingRequest{Text: strings.Join(args, " ")})
				if err != nil {
					return fmt.Errorf("embedding failed: %w", err)
				}

				preview := result.Vector
				if len(preview) > 5 {
					preview = preview[:5]
				}
				cmd.Printf("Dimension: %d\n", len(result.Vector))
				cmd.Printf("First values: %v\n", preview)
				return nil
			})
		},
	}
}
