package mailstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailbox"
)

// MigrationReport summarizes one migration run.
type MigrationReport struct {
	Processed int `json:"processed"`
	Migrated  int `json:"migrated"`
	Failed    int `json:"failed"`
}

// Migrate copies every message from the file backend into the
// relational backend, mailbox by mailbox. A failure on one message is
// logged and counted but does not halt the batch.
//
// Migrate keeps no record of previous runs: running it twice inserts
// every message twice. Run it against live ingestion at your own risk;
// there is no coordination with concurrent writers.
func Migrate(ctx context.Context, src *FileStore, dst *DBStore) (*MigrationReport, error) {
	report := &MigrationReport{}

	entries, err := os.ReadDir(src.Root())
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("No mailbox directory found at %s, nothing to migrate", src.Root())
			return report, nil
		}
		return nil, fmt.Errorf("failed to read mailbox root %s: %w", src.Root(), err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		identifier := entry.Name()
		address := mailbox.ToAddress(identifier)
		dir := filepath.Join(src.Root(), identifier)

		files, err := os.ReadDir(dir)
		if err != nil {
			log.Printf("ERROR: Failed to read mailbox %s: %v", identifier, err)
			continue
		}

		count := 0
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), emlExt) {
				continue
			}
			count++
			report.Processed++

			raw, err := os.ReadFile(filepath.Join(dir, file.Name()))
			if err != nil {
				log.Printf("ERROR: Failed to read %s/%s: %v", identifier, file.Name(), err)
				report.Failed++
				continue
			}

			id, err := dst.Write(ctx, address, raw)
			if err != nil {
				log.Printf("ERROR: Failed to migrate %s/%s: %v", identifier, file.Name(), err)
				report.Failed++
				continue
			}

			report.Migrated++
			log.Printf("Migrated %s -> %s", file.Name(), id)
		}

		if count == 0 {
			log.Printf("No emails found in mailbox for %s, skipping", address)
		} else {
			log.Printf("Migrated %d emails for %s", count, address)
		}
	}

	log.Printf("Migration completed: %d processed, %d migrated, %d failed",
		report.Processed, report.Migrated, report.Failed)
	return report, nil
}
