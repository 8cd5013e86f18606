package mailservice

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailstore"
)

func newTestService(t *testing.T, useDatabase bool) *Service {
	t.Helper()
	dir := t.TempDir()
	svc, err := New(Config{
		MailboxRoot:  filepath.Join(dir, "mailboxes"),
		DatabasePath: filepath.Join(dir, "emails.db"),
		UseDatabase:  useDatabase,
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func testMessage(subject, body string) []byte {
	return []byte("From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")
}

// Deliver, list, read, search, delete against the file backend.
func TestServiceFileBackendLifecycle(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	require.Equal(t, mailstore.BackendFile, svc.Backend())

	_, err := svc.Active().Write(ctx, "bob@example.com", testMessage("Hello", "World"))
	require.NoError(t, err)

	summaries, err := svc.List(ctx, "bob@example.com", 10, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Hello", summaries[0].Subject)
	assert.Equal(t, "alice@example.com", summaries[0].Sender)
	assert.False(t, summaries[0].IsRead)

	id := summaries[0].ID
	backend, _, err := DecodeID(id)
	require.NoError(t, err)
	assert.Equal(t, mailstore.BackendFile, backend)

	msg, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, msg.ID)
	assert.Contains(t, msg.Body, "World")

	matches, err := svc.Search(ctx, "bob@example.com", "orld", 10, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)

	assert.ErrorIs(t, svc.MarkRead(ctx, id), mailstore.ErrNotSupported)

	require.NoError(t, svc.Delete(ctx, id))
	summaries, err = svc.List(ctx, "bob@example.com", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestServiceDatabaseBackendLifecycle(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	require.Equal(t, mailstore.BackendDB, svc.Backend())

	_, err := svc.Active().Write(ctx, "bob@example.com", testMessage("Hello", "World"))
	require.NoError(t, err)

	summaries, err := svc.List(ctx, "bob@example.com", 10, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	id := summaries[0].ID

	require.NoError(t, svc.MarkRead(ctx, id))
	msg, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, msg.IsRead)

	require.NoError(t, svc.Delete(ctx, id))
	assert.ErrorIs(t, svc.Delete(ctx, id), mailstore.ErrNotFound)
}

// A db-tagged id keeps working while the file backend is active, and
// vice versa.
func TestServiceCrossBackendAddressing(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	nativeID, err := svc.db.Write(ctx, "carol@example.com", testMessage("direct", "into db"))
	require.NoError(t, err)

	msg, err := svc.Get(ctx, EncodeID(mailstore.BackendDB, nativeID))
	require.NoError(t, err)
	assert.Equal(t, "direct", msg.Subject)

	// Active listing still comes from the file backend.
	summaries, err := svc.List(ctx, "carol@example.com", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestServiceMigrate(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	for _, subject := range []string{"one", "two", "three"} {
		_, err := svc.Active().Write(ctx, "bob@example.com", testMessage(subject, "body "+subject))
		require.NoError(t, err)
	}

	report, err := svc.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.Migrated)
	assert.Equal(t, 0, report.Failed)

	rows, err := svc.db.List(ctx, "bob@example.com", 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestServiceMalformedIDs(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	for _, id := range []string{"no-tag", "tape:AAAA", "file:not!base64", ""} {
		_, err := svc.Get(ctx, id)
		assert.ErrorIs(t, err, mailstore.ErrNotFound, "id %q", id)
	}
}
