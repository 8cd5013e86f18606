package mailstore

import (
	"context"
	"fmt"
	"testing"
)

func TestMigrateCopiesEverything(t *testing.T) {
	src := newTestFileStore(t)
	dst := newTestDBStore(t)
	ctx := context.Background()

	recipients := []string{"bob@example.com", "alice@example.org", "carol@example.net"}
	total := 0
	for i, rcpt := range recipients {
		for j := 0; j <= i; j++ {
			raw := testMessage(fmt.Sprintf("msg %d-%d", i, j), "migration body")
			if _, err := src.Write(ctx, rcpt, raw); err != nil {
				t.Fatal(err)
			}
			total++
		}
	}

	report, err := Migrate(ctx, src, dst)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if report.Processed != total || report.Migrated != total || report.Failed != 0 {
		t.Errorf("report = %+v, want %d/%d/0", report, total, total)
	}

	for i, rcpt := range recipients {
		rows, err := dst.List(ctx, rcpt, 100, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != i+1 {
			t.Errorf("expected %d rows for %s, got %d", i+1, rcpt, len(rows))
		}
	}

	// A migrated message is fully readable from the relational side.
	rows, err := dst.List(ctx, "bob@example.com", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := dst.Get(ctx, rows[0].ID)
	if err != nil {
		t.Fatalf("Get of migrated message failed: %v", err)
	}
	if msg.IsRead {
		t.Error("migrated message must start unread")
	}
	if len(msg.Raw) == 0 {
		t.Error("migrated message lost its raw bytes")
	}
}

// Migration keeps no state: a second run duplicates every message.
func TestMigrateIsNotIdempotent(t *testing.T) {
	src := newTestFileStore(t)
	dst := newTestDBStore(t)
	ctx := context.Background()

	const k = 4
	for i := 0; i < k; i++ {
		raw := testMessage(fmt.Sprintf("msg %d", i), "body")
		if _, err := src.Write(ctx, "bob@example.com", raw); err != nil {
			t.Fatal(err)
		}
	}

	for run := 1; run <= 2; run++ {
		report, err := Migrate(ctx, src, dst)
		if err != nil {
			t.Fatalf("Migrate run %d failed: %v", run, err)
		}
		if report.Migrated != k {
			t.Errorf("run %d migrated %d, want %d", run, report.Migrated, k)
		}

		rows, err := dst.List(ctx, "bob@example.com", 100, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != k*run {
			t.Errorf("after run %d expected %d rows, got %d", run, k*run, len(rows))
		}
	}
}

func TestMigrateEmptyRoot(t *testing.T) {
	src := newTestFileStore(t)
	dst := newTestDBStore(t)

	report, err := Migrate(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("Migrate on empty root failed: %v", err)
	}
	if report.Processed != 0 {
		t.Errorf("expected nothing processed, got %+v", report)
	}
}
