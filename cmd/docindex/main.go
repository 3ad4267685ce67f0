package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/docindex-mcp/internal/config"
	"github.com/dshills/docindex-mcp/internal/embedder"
	"github.com/dshills/docindex-mcp/internal/extractor"
	"github.com/dshills/docindex-mcp/internal/fetcher"
	"github.com/dshills/docindex-mcp/internal/indexer"
	"github.com/dshills/docindex-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// rootFlags are shared by every command
type rootFlags struct {
	configPath string
	envFiles   []string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "docindex",
		Short: "Paragraph-level semantic search over documents",
		Long: `docindex extracts a document's text, embeds every paragraph and caches the
vectors in a SQLite file next to the document. Searches return every paragraph
whose embedding is similar enough to the query.

It runs as an MCP server (serve) or directly from the command line.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("DocIndex MCP Server\nVersion: {{.Version}}\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\n",
		buildTime, storage.BuildMode, storage.DriverName))

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log pipeline progress to stderr")

	root.AddCommand(
		newServeCmd(flags),
		newBuildCmd(flags),
		newSearchCmd(flags),
		newStatusCmd(flags),
		newForgetCmd(flags),
		newEmbedCmd(flags),
	)
	return root
}

// app holds the wired pipeline for one command invocation
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *storage.SQLiteStorage
	batch   *embedder.BatchEmbedder
	indexer *indexer.Indexer
	fetcher *fetcher.Fetcher
}

// loadConfig reads .env files, the optional YAML file and the environment
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if err := config.LoadDotEnv(flags.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes to stderr; stdout is reserved for MCP stdio and command output
func newLogger(verbose bool) *log.Logger {
	logger := log.New(os.Stderr, "docindex: ", log.LstdFlags)
	if !verbose {
		logger.SetFlags(0)
	}
	return logger
}

func newApp(flags *rootFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logger := newLogger(flags.verbose)

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	batch := embedder.NewBatchEmbedder(emb, cfg.BatchConfig())

	store := storage.NewSQLiteStorage()

	idxLogger := logger
	if !flags.verbose {
		idxLogger = nil
	}
	idx := indexer.New(store, extractor.New(), batch, indexer.Config{
		Threshold:       cfg.Index.Threshold,
		QueryCacheSize:  cfg.Index.QueryCacheSize,
		LocalRateLimit:  cfg.RateLimit.LocalCalls,
		LocalRatePeriod: cfg.RateLimit.LocalPeriod,
		Logger:          idxLogger,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		batch:   batch,
		indexer: idx,
		fetcher: fetcher.New(cfg.FetcherConfig()),
	}, nil
}

func (a *app) Close() error {
	storeErr := a.store.Close()
	if err := a.batch.Close(); err != nil {
		return err
	}
	return storeErr
}

// withApp runs fn with a wired app and closes it afterwards
func withApp(flags *rootFlags, fn func(a *app) error) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}
