// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Target
	SiteURL string `json:"site_url,omitempty"` // Site to audit
	Topic   string `json:"topic,omitempty"`    // Business topic for keyword discovery

	// Credentials
	APIKey         string `json:"api_key,omitempty"`          // Gemini API key
	CrawlerURL     string `json:"crawler_url,omitempty"`      // Crawl provider base URL
	CrawlerAPIKey  string `json:"crawler_api_key,omitempty"`  // Crawl provider API key
	SearchAPIKey   string `json:"search_api_key,omitempty"`   // Custom Search API key
	SearchEngineID string `json:"search_engine_id,omitempty"` // Custom Search engine id
	DatabaseURL    string `json:"database_url,omitempty"`     // PostgreSQL connection URL

	// Behavior
	UserID          string  `json:"user_id,omitempty"`           // Owner recorded on submitted jobs
	UseBrowser      bool    `json:"use_browser,omitempty"`       // Render JS-heavy pages in a headless browser
	Verbose         bool    `json:"verbose,omitempty"`           // Print detailed progress
	Port            int     `json:"port,omitempty"`              // HTTP port for server mode
	MaxConcurrent   int     `json:"max_concurrent,omitempty"`    // Concurrent audit pipelines
	MaxPages        int     `json:"max_pages,omitempty"`         // Crawl page budget
	TokensPerMinute int     `json:"tokens_per_minute,omitempty"` // Model token budget
	MinConfidence   float64 `json:"min_confidence,omitempty"`    // Findings below this confidence are dropped
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("config error: 'max_concurrent' must be non-negative")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("config error: 'max_pages' must be non-negative")
	}
	if c.TokensPerMinute < 0 {
		return fmt.Errorf("config error: 'tokens_per_minute' must be non-negative")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("config error: 'min_confidence' must be between 0.0 and 1.0")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty string fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.SiteURL == "" {
		result.SiteURL = defaults.SiteURL
	}
	if result.Topic == "" {
		result.Topic = defaults.Topic
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.CrawlerURL == "" {
		result.CrawlerURL = defaults.CrawlerURL
	}
	if result.CrawlerAPIKey == "" {
		result.CrawlerAPIKey = defaults.CrawlerAPIKey
	}
	if result.SearchAPIKey == "" {
		result.SearchAPIKey = defaults.SearchAPIKey
	}
	if result.SearchEngineID == "" {
		result.SearchEngineID = defaults.SearchEngineID
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.UserID == "" {
		result.UserID = defaults.UserID
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.MaxConcurrent == 0 {
		result.MaxConcurrent = defaults.MaxConcurrent
	}
	if result.MaxPages == 0 {
		result.MaxPages = defaults.MaxPages
	}
	if result.TokensPerMinute == 0 {
		result.TokensPerMinute = defaults.TokensPerMinute
	}

	// Float fields
	if result.MinConfidence == 0 {
		result.MinConfidence = defaults.MinConfidence
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
