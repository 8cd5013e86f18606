// Package mailstore provides the two durable message storage backends
// (file-based and SQLite-based) behind a single Store interface, plus
// the one-shot migration from the file backend into the relational
// one.
//
// Message identifiers are scoped to a store instance: the same logical
// message carries different ids in the two backends. Raw message bytes
// are immutable once stored; the only mutation is the read flag.
package mailstore

import (
	"context"
	"errors"
	"time"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendFile Backend = "file"
	BackendDB   Backend = "db"
)

// DefaultListLimit is used when a caller passes a non-positive limit.
const DefaultListLimit = 50

var (
	// ErrNotFound is returned when an operation addresses a message
	// or mailbox that does not exist.
	ErrNotFound = errors.New("mailstore: message not found")

	// ErrNotSupported is returned by operations a backend cannot
	// perform, such as marking a file-backed message as read.
	ErrNotSupported = errors.New("mailstore: operation not supported by this backend")
)

// Summary is the metadata row returned by listing and searching. It
// deliberately excludes the body and raw bytes.
type Summary struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	IsRead     bool      `json:"is_read"`
}

// Message is a fully loaded message including the verbatim bytes as
// received, so re-parsing is always possible.
type Message struct {
	Summary
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
	Raw         []byte   `json:"-"`
}

// Store is the persistence contract both backends satisfy. Write
// assigns a store-scoped id and persists one independent copy of the
// message for the given recipient; a message delivered to N recipients
// is written N times. Listing and searching order messages by received
// time descending, ties broken by the store's natural key ordering.
type Store interface {
	// Backend identifies the implementation.
	Backend() Backend

	// Write persists raw message bytes into the recipient's mailbox,
	// creating the mailbox if it does not exist, and returns the new
	// message id.
	Write(ctx context.Context, recipient string, raw []byte) (string, error)

	// Mailboxes lists every known mailbox address.
	Mailboxes(ctx context.Context) ([]string, error)

	// List returns metadata for the recipient's messages, newest
	// first. A non-positive limit falls back to DefaultListLimit. An
	// unknown recipient yields an empty slice, not an error.
	List(ctx context.Context, recipient string, limit, offset int) ([]Summary, error)

	// Get loads one message by id, including body and raw bytes.
	Get(ctx context.Context, id string) (*Message, error)

	// MarkRead flips the read flag to true. Idempotent: marking an
	// already-read message succeeds and changes nothing.
	MarkRead(ctx context.Context, id string) error

	// Delete removes the message permanently. A missing id reports
	// ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Search returns metadata for messages whose subject or body
	// contains query as a case-insensitive substring, ordered and
	// paginated like List.
	Search(ctx context.Context, recipient, query string, limit, offset int) ([]Summary, error)

	// Close releases backend resources.
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
