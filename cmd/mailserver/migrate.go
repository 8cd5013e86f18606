package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every file-based message into the SQLite database",
	Long: `migrate walks the mailbox directory and inserts every stored message
into the SQLite database. It keeps no state between runs: running it
twice inserts every message twice.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	service, err := newService()
	if err != nil {
		return err
	}
	defer service.Close()

	report, err := service.Migrate(context.Background())
	if err != nil {
		return err
	}

	log.Printf("Migration finished: %d processed, %d migrated, %d failed",
		report.Processed, report.Migrated, report.Failed)
	return nil
}
