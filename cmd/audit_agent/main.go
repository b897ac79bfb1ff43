// Package main provides the entry point for the Site Auditor HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "audit_agent",
	Short: "Site Auditor HTTP API Server",
	Long:  "Site Auditor crawls a shop website, analyzes its legal compliance, privacy posture and translation quality with LLM agents, and compiles the findings into a scored report via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
