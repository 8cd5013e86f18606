package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailservice"
)

var (
	mailboxDir   string
	databasePath string
	useDatabase  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mailserver",
	Short: "Development mail server with file and SQLite storage",
	Long: `mailserver accepts mail over SMTP, stores it per recipient in either
a directory of .eml files or a SQLite database, and serves the stored
mail over IMAP and an HTTP API.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Load .env if present; environment variables seed the flag
	// defaults, explicit flags win.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded configuration from .env")
	}

	defaults := mailservice.DefaultConfig()

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&mailboxDir, "mailbox-dir",
		envString("MAILBOX_DIR", defaults.MailboxRoot), "root directory for file-based mailboxes")
	rootCmd.PersistentFlags().StringVar(&databasePath, "database",
		envString("DATABASE_PATH", defaults.DatabasePath), "path to the SQLite database file")
	rootCmd.PersistentFlags().BoolVar(&useDatabase, "use-db",
		envBool("USE_DB", false), "serve reads and writes from the SQLite backend")
}

func newService() (*mailservice.Service, error) {
	return mailservice.New(mailservice.Config{
		MailboxRoot:  mailboxDir,
		DatabasePath: databasePath,
		UseDatabase:  useDatabase,
	})
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("ERROR: Invalid value for %s: %q, using %d", key, v, fallback)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("ERROR: Invalid value for %s: %q, using %t", key, v, fallback)
	}
	return fallback
}
