package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/analysis"
	"github.com/jonathan/site-auditor/internal/audit"
	"github.com/jonathan/site-auditor/internal/crawl"
	"github.com/jonathan/site-auditor/internal/db"
	"github.com/jonathan/site-auditor/internal/kb"
	"github.com/jonathan/site-auditor/internal/keywords"
	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/report"
	"github.com/jonathan/site-auditor/internal/server"
)

var (
	servePort          int
	serveMaxConcurrent int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for submitting audits, following their progress and reading the finished reports.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().IntVar(&serveMaxConcurrent, "max-concurrent", audit.DefaultMaxConcurrent, "Maximum audits running at once")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Get database URL from environment
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	// Get API key from environment
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	tokensPerMinute := llm.DefaultTokensPerMinute
	if v := os.Getenv("TOKENS_PER_MINUTE"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid TOKENS_PER_MINUTE value: %q", v)
		}
		tokensPerMinute = parsed
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	budget := llm.NewTokenBudget(tokensPerMinute, llm.DefaultMinSpacing)
	client, err := llm.NewGeminiClient(ctx, apiKey, llm.DefaultConfig(), budget, logger)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	// The crawl provider is optional. Without it only the direct probe of
	// well-known legal and contact paths runs.
	var provider crawl.Provider
	if crawlerURL := os.Getenv("CRAWLER_URL"); crawlerURL != "" {
		provider = crawl.NewHTTPProvider(crawlerURL, os.Getenv("CRAWLER_API_KEY"), logger)
	}
	crawler := crawl.New(provider, crawl.DefaultOptions(), logger)

	builder := kb.NewBuilder(client, database, 0, logger)
	retriever := kb.NewRetriever(client, database, 0, 0, logger)
	coordinator := analysis.NewCoordinator(client, retriever, logger)
	compiler := report.NewCompiler(client, 0, logger)

	manager := audit.NewManager(audit.ManagerConfig{
		Store:    database,
		Chunks:   database,
		Crawler:  crawler,
		Ingestor: builder,
		Analyzer: coordinator,
		Compiler: compiler,
		Gate:     audit.NewGate(int64(serveMaxConcurrent)),
		Logger:   logger,
	})

	// Keyword discovery needs Google Custom Search credentials. Without
	// them the endpoint reports that it is not configured.
	var discoverer server.KeywordDiscoverer
	searchKey := os.Getenv("SEARCH_API_KEY")
	searchEngineID := os.Getenv("SEARCH_ENGINE_ID")
	if searchKey != "" && searchEngineID != "" {
		searcher, err := keywords.NewCSESearcher(ctx, searchKey, searchEngineID)
		if err != nil {
			return fmt.Errorf("failed to create search client: %w", err)
		}
		discoverer = keywords.NewPipeline(searcher, client, database, logger)
	}

	srv := server.New(server.Config{Port: servePort}, server.Deps{
		Audits:   manager,
		Jobs:     database,
		Keywords: discoverer,
		Logger:   logger,
	})

	return srv.Start()
}
