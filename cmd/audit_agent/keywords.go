package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/config"
	"github.com/jonathan/site-auditor/internal/db"
	"github.com/jonathan/site-auditor/internal/keywords"
	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/observability"
)

var keywordsCommand = &cobra.Command{
	Use:   "keywords",
	Short: "Discover search keywords for a site",
	Long: `Runs the keyword discovery pipeline once: web search over fixed query patterns, LLM extraction of candidate keywords, normalization and persistence.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values. Without --db-url the keywords are printed but not stored.`,
	RunE: runKeywordsCmd,
}

var (
	kwConfigPath     string
	kwSiteURL        string
	kwTopic          string
	kwAPIKey         string
	kwSearchAPIKey   string
	kwSearchEngineID string
	kwDatabaseURL    string
	kwVerbose        bool
)

func init() {
	keywordsCommand.Flags().StringVar(&kwConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	keywordsCommand.Flags().StringVarP(&kwSiteURL, "url", "u", "", "Site URL to discover keywords for")
	keywordsCommand.Flags().StringVarP(&kwTopic, "topic", "t", "", "Business topic to widen the searches (optional)")
	keywordsCommand.Flags().BoolVarP(&kwVerbose, "verbose", "v", false, "Print detailed progress information")

	keywordsCommand.Flags().StringVar(&kwAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	keywordsCommand.Flags().StringVar(&kwSearchAPIKey, "search-api-key", "", "Custom Search API key (optional, defaults to SEARCH_API_KEY env var)")
	keywordsCommand.Flags().StringVar(&kwSearchEngineID, "search-engine-id", "", "Custom Search engine id (optional, defaults to SEARCH_ENGINE_ID env var)")
	keywordsCommand.Flags().StringVar(&kwDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(keywordsCommand)
}

func runKeywordsCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	var cfg config.Config
	if kwConfigPath != "" {
		loadedCfg, err := config.LoadConfig(kwConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
	}

	if cmd.Flags().Changed("url") {
		cfg.SiteURL = kwSiteURL
	}
	if cmd.Flags().Changed("topic") {
		cfg.Topic = kwTopic
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = kwAPIKey
	}
	if cmd.Flags().Changed("search-api-key") {
		cfg.SearchAPIKey = kwSearchAPIKey
	}
	if cmd.Flags().Changed("search-engine-id") {
		cfg.SearchEngineID = kwSearchEngineID
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = kwDatabaseURL
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = kwVerbose
	}

	if cfg.SiteURL == "" {
		return fmt.Errorf("--url must be provided (via flag or config)")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	if cfg.SearchAPIKey == "" {
		cfg.SearchAPIKey = os.Getenv("SEARCH_API_KEY")
	}
	if cfg.SearchEngineID == "" {
		cfg.SearchEngineID = os.Getenv("SEARCH_ENGINE_ID")
	}
	if cfg.SearchAPIKey == "" || cfg.SearchEngineID == "" {
		return fmt.Errorf("SEARCH_API_KEY and SEARCH_ENGINE_ID are required for keyword discovery")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	logger := zap.NewNop()
	if cfg.Verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck
	}

	var store keywords.KeywordStore
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := database.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		store = database
	}

	budget := llm.NewTokenBudget(llm.DefaultTokensPerMinute, llm.DefaultMinSpacing)
	client, err := llm.NewGeminiClient(ctx, cfg.APIKey, llm.DefaultConfig(), budget, logger)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	searcher, err := keywords.NewCSESearcher(ctx, cfg.SearchAPIKey, cfg.SearchEngineID)
	if err != nil {
		return fmt.Errorf("failed to create search client: %w", err)
	}

	pipeline := keywords.NewPipeline(searcher, client, store, logger)
	found, err := pipeline.Discover(ctx, cfg.SiteURL, cfg.Topic)
	if err != nil {
		return fmt.Errorf("keyword discovery failed: %w", err)
	}

	observability.NewPrinter(os.Stdout).PrintKeywords(found)
	return nil
}
