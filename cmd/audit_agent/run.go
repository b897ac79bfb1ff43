package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/analysis"
	"github.com/jonathan/site-auditor/internal/audit"
	"github.com/jonathan/site-auditor/internal/config"
	"github.com/jonathan/site-auditor/internal/crawl"
	"github.com/jonathan/site-auditor/internal/db"
	"github.com/jonathan/site-auditor/internal/kb"
	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/observability"
	"github.com/jonathan/site-auditor/internal/report"
	"github.com/jonathan/site-auditor/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one audit end-to-end from the terminal",
	Long: `Crawls the target site, indexes its content, runs the analysis agents and prints the compiled report.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values. Without --db-url the run keeps all state in memory.`,
	RunE: runAuditCmd,
}

var (
	runConfigPath    string
	runSiteURL       string
	runAPIKey        string
	runCrawlerURL    string
	runCrawlerAPIKey string
	runDatabaseURL   string
	runMaxPages      int
	runTokensPerMin  int
	runMinConfidence float64
	runUseBrowser    bool
	runVerbose       bool
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runSiteURL, "url", "u", "", "Site URL to audit")
	runCommand.Flags().StringVar(&runCrawlerURL, "crawler-url", "", "Crawl provider base URL (optional, defaults to CRAWLER_URL env var)")
	runCommand.Flags().StringVar(&runCrawlerAPIKey, "crawler-api-key", "", "Crawl provider API key (optional, defaults to CRAWLER_API_KEY env var)")
	runCommand.Flags().IntVar(&runMaxPages, "max-pages", 0, "Crawl page budget")
	runCommand.Flags().IntVar(&runTokensPerMin, "tokens-per-minute", 0, "Model token budget per minute")
	runCommand.Flags().Float64Var(&runMinConfidence, "min-confidence", 0, "Findings below this confidence are dropped")
	runCommand.Flags().BoolVar(&runUseBrowser, "use-browser", false, "Render JS-heavy pages in a headless browser (requires Chrome)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed progress information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL is optional for one-shot runs; without it the job and
	// its chunks live in memory only
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runAuditCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	if cmd.Flags().Changed("url") {
		cfg.SiteURL = runSiteURL
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("crawler-url") {
		cfg.CrawlerURL = runCrawlerURL
	}
	if cmd.Flags().Changed("crawler-api-key") {
		cfg.CrawlerAPIKey = runCrawlerAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.MaxPages = runMaxPages
	}
	if cmd.Flags().Changed("tokens-per-minute") {
		cfg.TokensPerMinute = runTokensPerMin
	}
	if cmd.Flags().Changed("min-confidence") {
		cfg.MinConfidence = runMinConfidence
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = runUseBrowser
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.Config{
		TokensPerMinute: llm.DefaultTokensPerMinute,
	})

	// Step 4: Validate required fields
	if cfg.SiteURL == "" {
		return fmt.Errorf("--url must be provided (via flag or config)")
	}

	// Step 5: API key handling
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	if cfg.CrawlerURL == "" {
		cfg.CrawlerURL = os.Getenv("CRAWLER_URL")
	}
	if cfg.CrawlerAPIKey == "" {
		cfg.CrawlerAPIKey = os.Getenv("CRAWLER_API_KEY")
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

	// Step 6: Stores. With a database URL the run persists like the server
	// does; without one everything lives in process memory.
	var (
		jobs   audit.JobStore
		chunks kb.ChunkStore
	)
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := database.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		jobs = database
		chunks = database
	} else {
		jobs = audit.NewMemoryJobStore()
		chunks = kb.NewMemoryStore()
	}

	budget := llm.NewTokenBudget(cfg.TokensPerMinute, llm.DefaultMinSpacing)
	client, err := llm.NewGeminiClient(ctx, cfg.APIKey, llm.DefaultConfig(), budget, logger)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	var provider crawl.Provider
	if cfg.CrawlerURL != "" {
		provider = crawl.NewHTTPProvider(cfg.CrawlerURL, cfg.CrawlerAPIKey, logger)
	}
	crawlOpts := crawl.DefaultOptions()
	if cfg.MaxPages > 0 {
		crawlOpts.PageLimit = cfg.MaxPages
	}
	crawlOpts.BrowserFallback = cfg.UseBrowser
	crawler := crawl.New(provider, crawlOpts, logger)

	retriever := kb.NewRetriever(client, chunks, 0, 0, logger)
	manager := audit.NewManager(audit.ManagerConfig{
		Store:    jobs,
		Chunks:   chunks,
		Crawler:  crawler,
		Ingestor: kb.NewBuilder(client, chunks, 0, logger),
		Analyzer: analysis.NewCoordinator(client, retriever, logger),
		Compiler: report.NewCompiler(client, cfg.MinConfidence, logger),
		Gate:     audit.NewGate(1),
		Logger:   logger,
	})

	printer := observability.NewPrinter(os.Stdout)

	// Queue mode: a one-shot run waits for its slot instead of bailing out
	jobID, err := manager.StartAudit(ctx, cfg.SiteURL, audit.StartOptions{
		UserID: cfg.UserID,
		Queue:  true,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "Audit started: %s\n", jobID)

	// Follow the status channel, polling the job record as the fallback
	// for anything the channel dropped.
	events := manager.Hub().Subscribe(jobID)
	defer manager.Hub().Unsubscribe(jobID, events)
	poll := time.NewTicker(2 * time.Second)
	defer poll.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			printer.PrintStatus(evt)
		case <-poll.C:
		}

		job, err := jobs.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to read job: %w", err)
		}
		if job == nil || !job.Status.Terminal() {
			continue
		}

		if job.Status == types.JobFailed || job.Report == nil {
			return fmt.Errorf("audit failed: %s", job.StatusMessage)
		}
		if cfg.Verbose && job.RawCache != nil {
			printer.PrintCrawlSummary(&types.CrawlResult{
				Pages:       job.RawCache.Pages,
				Contact:     job.RawCache.Contact,
				Translation: job.RawCache.Translation,
			})
		}
		printer.PrintReport(job.Report)
		printer.PrintActionList(job.Report.ActionList)
		return nil
	}
}
