package mailstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Muszic/SMTP-Email-Server/pkg/mail"
)

// sqlTimeLayout is fixed width so the TEXT column sorts
// chronologically under ORDER BY.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z"

// DBStoreConfig configures the relational backend.
type DBStoreConfig struct {
	// Path is the SQLite database file, created on first use.
	Path string
}

// DefaultDBStoreConfig returns the default relational backend
// configuration.
func DefaultDBStoreConfig() DBStoreConfig {
	return DBStoreConfig{Path: filepath.Join("database", "emails.db")}
}

// DBStore persists message metadata and raw bytes as rows in an
// indexed SQLite table. Message ids have the form
// "{timestamp}_{message-id-fragment}"; the fragment comes from the
// Message-ID header and is empty when the header is absent.
//
// Each operation runs as its own implicit transaction and releases the
// connection on every exit path.
type DBStore struct {
	db *sqlx.DB
}

// NewDBStore opens (creating if needed) the database and ensures the
// schema exists.
func NewDBStore(config DBStoreConfig) (*DBStore, error) {
	if config.Path == "" {
		config = DefaultDBStoreConfig()
	}

	if dir := filepath.Dir(config.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sqlx.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", config.Path, err)
	}
	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY between concurrent sessions.
	db.SetMaxOpenConns(1)

	store := &DBStore{db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *DBStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS emails (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		subject TEXT,
		body TEXT,
		received_date TIMESTAMP NOT NULL,
		is_read BOOLEAN DEFAULT 0,
		raw_email BLOB,
		attachments TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_recipient ON emails (recipient);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize email schema: %w", err)
	}
	return nil
}

// Backend identifies the implementation.
func (s *DBStore) Backend() Backend { return BackendDB }

type emailRow struct {
	ID           string `db:"id"`
	Sender       string `db:"sender"`
	Recipient    string `db:"recipient"`
	Subject      string `db:"subject"`
	Body         string `db:"body"`
	ReceivedDate string `db:"received_date"`
	IsRead       bool   `db:"is_read"`
	RawEmail     []byte `db:"raw_email"`
	Attachments  string `db:"attachments"`
}

func (r *emailRow) summary() Summary {
	received, err := time.Parse(sqlTimeLayout, r.ReceivedDate)
	if err != nil {
		received = time.Time{}
	}
	return Summary{
		ID:         r.ID,
		Sender:     r.Sender,
		Recipient:  r.Recipient,
		Subject:    r.Subject,
		ReceivedAt: received,
		IsRead:     r.IsRead,
	}
}

// Write parses the raw bytes and inserts one row atomically. A parse
// problem degrades metadata to defaults but the raw bytes are stored
// regardless. On an id collision (two messages in the same second with
// the same Message-ID fragment) the insert retries once with a random
// suffix, keeping same-second batch writes from failing spuriously.
func (s *DBStore) Write(ctx context.Context, recipient string, raw []byte) (string, error) {
	email := mail.ParseMessage(raw)

	received := time.Now().UTC()
	id := received.Format(timestampLayout) + "_" + email.MessageID

	attachments, err := json.Marshal(email.AttachmentNames())
	if err != nil {
		return "", fmt.Errorf("failed to encode attachments: %w", err)
	}

	const insert = `
	INSERT INTO emails (id, sender, recipient, subject, body, received_date, is_read, raw_email, attachments)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, insert,
		id, email.From, recipient, email.Subject, email.Body,
		received.Format(sqlTimeLayout), false, raw, string(attachments))
	if err != nil && isUniqueViolation(err) {
		id = id + "_" + uuid.NewString()[:8]
		_, err = s.db.ExecContext(ctx, insert,
			id, email.From, recipient, email.Subject, email.Body,
			received.Format(sqlTimeLayout), false, raw, string(attachments))
	}
	if err != nil {
		return "", fmt.Errorf("failed to store email for %s: %w", recipient, err)
	}

	log.Printf("Stored email for %s with ID %s", recipient, id)
	return id, nil
}

// Mailboxes lists every distinct recipient with at least one message.
func (s *DBStore) Mailboxes(ctx context.Context) ([]string, error) {
	var addresses []string
	err := s.db.SelectContext(ctx, &addresses,
		`SELECT DISTINCT recipient FROM emails ORDER BY recipient`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}
	return addresses, nil
}

// List returns metadata rows for the recipient, newest first. The
// recipient index keeps this from scanning the whole table.
func (s *DBStore) List(ctx context.Context, recipient string, limit, offset int) ([]Summary, error) {
	const query = `
	SELECT id, sender, recipient, subject, received_date, is_read
	FROM emails
	WHERE recipient = ?
	ORDER BY received_date DESC, id DESC
	LIMIT ? OFFSET ?`

	var rows []emailRow
	if err := s.db.SelectContext(ctx, &rows, query, recipient, normalizeLimit(limit), max(offset, 0)); err != nil {
		return nil, fmt.Errorf("failed to list mailbox for %s: %w", recipient, err)
	}

	summaries := make([]Summary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, rows[i].summary())
	}
	return summaries, nil
}

// Get loads the full row for one message.
func (s *DBStore) Get(ctx context.Context, id string) (*Message, error) {
	var row emailRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM emails WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get email %s: %w", id, err)
	}

	var attachments []string
	if row.Attachments != "" {
		if err := json.Unmarshal([]byte(row.Attachments), &attachments); err != nil {
			log.Printf("ERROR: Corrupt attachment list on email %s: %v", id, err)
		}
	}

	return &Message{
		Summary:     row.summary(),
		Body:        row.Body,
		Attachments: attachments,
		Raw:         row.RawEmail,
	}, nil
}

// MarkRead sets the read flag. Marking an already-read message
// succeeds and observably changes nothing.
func (s *DBStore) MarkRead(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE emails SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark email %s as read: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of email %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row permanently.
func (s *DBStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM emails WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete email %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete of email %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Search matches query as a substring of subject or body via SQL LIKE,
// which is case-insensitive for ASCII in SQLite.
func (s *DBStore) Search(ctx context.Context, recipient, query string, limit, offset int) ([]Summary, error) {
	const search = `
	SELECT id, sender, recipient, subject, received_date, is_read
	FROM emails
	WHERE recipient = ? AND (subject LIKE ? OR body LIKE ?)
	ORDER BY received_date DESC, id DESC
	LIMIT ? OFFSET ?`

	pattern := "%" + query + "%"
	var rows []emailRow
	err := s.db.SelectContext(ctx, &rows, search,
		recipient, pattern, pattern, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox for %s: %w", recipient, err)
	}

	summaries := make([]Summary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, rows[i].summary())
	}
	return summaries, nil
}

// Close closes the underlying database.
func (s *DBStore) Close() error { return s.db.Close() }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
