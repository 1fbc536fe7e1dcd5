package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	verbose       bool
	subject       string
	scope         string
	clientID      string
	clientSecret  string
	tokenURL      string
	baseURL       string
	databaseDSN   string
	redisAddr     string
	redisPassword string
)

var rootCmd = &cobra.Command{
	Use:   "ledger-bridge",
	Short: "Bridge a Swedish ledger API: tokens, VAT reconciliation, corrections",
	Long: `Ledger Bridge synchronises bookkeeping data with a hosted ledger API.

It manages OAuth token rotation for connected companies, runs every API
call through a rate-limited retrying pipeline, reconciles VAT per fiscal
year into a balanced settlement journal, and applies posting corrections
exactly once.

Examples:
  # Connect a company using an authorization code
  ledger-bridge connect <code> --redirect-uri https://example.com/callback

  # Generate the VAT report for the fiscal year containing a date
  ledger-bridge vatreport --date 2026-03-31 --format sie -o report.se

  # Apply a posting correction described in a JSON file
  ledger-bridge correct --input correction.json

  # Start the HTTP API server
  ledger-bridge serve --address :8080`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&subject, "subject", "", "Connected company identifier (env: LEDGER_SUBJECT)")
	rootCmd.PersistentFlags().StringVar(&scope, "scope", "", "Credential scope (env: LEDGER_SCOPE)")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "OAuth client id (env: FORTNOX_CLIENT_ID)")
	rootCmd.PersistentFlags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret (env: FORTNOX_CLIENT_SECRET)")
	rootCmd.PersistentFlags().StringVar(&tokenURL, "token-url", "", "OAuth token endpoint (env: FORTNOX_TOKEN_URL)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Ledger API base URL (env: FORTNOX_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&databaseDSN, "database-dsn", "", "MySQL DSN for credentials and audit records (env: DATABASE_DSN)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Redis address for idempotency keys (env: REDIS_ADDR)")
	rootCmd.PersistentFlags().StringVar(&redisPassword, "redis-password", "", "Redis password (env: REDIS_PASSWORD)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// A local .env is optional.
	_ = godotenv.Load()

	if subject == "" {
		subject = os.Getenv("LEDGER_SUBJECT")
	}
	if scope == "" {
		scope = os.Getenv("LEDGER_SCOPE")
	}
	if clientID == "" {
		clientID = os.Getenv("FORTNOX_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("FORTNOX_CLIENT_SECRET")
	}
	if tokenURL == "" {
		tokenURL = os.Getenv("FORTNOX_TOKEN_URL")
	}
	if baseURL == "" {
		baseURL = os.Getenv("FORTNOX_BASE_URL")
	}
	if databaseDSN == "" {
		databaseDSN = os.Getenv("DATABASE_DSN")
	}
	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	if redisPassword == "" {
		redisPassword = os.Getenv("REDIS_PASSWORD")
	}

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
