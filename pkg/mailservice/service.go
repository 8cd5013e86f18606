// Package mailservice is the query façade over the two storage
// backends. It owns no message state: every call dispatches to a
// backend, with backend-native identities wrapped into opaque tagged
// ids ("file:..." / "db:...") so callers can address records in either
// backend uniformly.
package mailservice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailstore"
)

// Config selects the storage locations and the active backend.
type Config struct {
	// MailboxRoot is the file backend's root directory.
	MailboxRoot string
	// DatabasePath is the relational backend's SQLite file.
	DatabasePath string
	// UseDatabase makes the relational backend the active read/write
	// path; otherwise the file backend is active. Both backends stay
	// reachable through tagged ids either way.
	UseDatabase bool
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		MailboxRoot:  mailstore.DefaultFileStoreConfig().Root,
		DatabasePath: mailstore.DefaultDBStoreConfig().Path,
	}
}

// Service dispatches query-surface calls to the configured backends.
type Service struct {
	file   *mailstore.FileStore
	db     *mailstore.DBStore
	active mailstore.Store
}

// New opens both backends and selects the active one.
func New(config Config) (*Service, error) {
	file, err := mailstore.NewFileStore(mailstore.FileStoreConfig{Root: config.MailboxRoot})
	if err != nil {
		return nil, fmt.Errorf("failed to open file backend: %w", err)
	}

	db, err := mailstore.NewDBStore(mailstore.DBStoreConfig{Path: config.DatabasePath})
	if err != nil {
		return nil, fmt.Errorf("failed to open relational backend: %w", err)
	}

	s := &Service{file: file, db: db}
	if config.UseDatabase {
		s.active = db
	} else {
		s.active = file
	}
	log.Printf("Mail service using %s backend as active store", s.active.Backend())
	return s, nil
}

// Close releases both backends.
func (s *Service) Close() error {
	s.file.Close()
	return s.db.Close()
}

// Active returns the active backend, for components that write
// directly (the SMTP ingestion path).
func (s *Service) Active() mailstore.Store { return s.active }

// Backend names the active backend.
func (s *Service) Backend() mailstore.Backend { return s.active.Backend() }

// Mailboxes lists every mailbox known to the active backend.
func (s *Service) Mailboxes(ctx context.Context) ([]string, error) {
	return s.active.Mailboxes(ctx)
}

// List returns the recipient's messages from the active backend,
// newest first, with tagged ids.
func (s *Service) List(ctx context.Context, recipient string, limit, offset int) ([]mailstore.Summary, error) {
	summaries, err := s.active.List(ctx, recipient, limit, offset)
	if err != nil {
		return nil, err
	}
	tagSummaries(s.active.Backend(), summaries)
	return summaries, nil
}

// Search runs a substring search against the active backend.
func (s *Service) Search(ctx context.Context, recipient, query string, limit, offset int) ([]mailstore.Summary, error) {
	summaries, err := s.active.Search(ctx, recipient, query, limit, offset)
	if err != nil {
		return nil, err
	}
	tagSummaries(s.active.Backend(), summaries)
	return summaries, nil
}

// Get loads one message by tagged id, from whichever backend the tag
// names.
func (s *Service) Get(ctx context.Context, id string) (*mailstore.Message, error) {
	store, nativeID, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	msg, err := store.Get(ctx, nativeID)
	if err != nil {
		return nil, err
	}
	msg.ID = EncodeID(store.Backend(), nativeID)
	return msg, nil
}

// MarkRead flips the read flag on the addressed record. The file
// backend reports ErrNotSupported.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	store, nativeID, err := s.resolve(id)
	if err != nil {
		return err
	}
	return store.MarkRead(ctx, nativeID)
}

// Delete removes the addressed record permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	store, nativeID, err := s.resolve(id)
	if err != nil {
		return err
	}
	return store.Delete(ctx, nativeID)
}

// Migrate copies every file-backed message into the relational
// backend. Running it twice duplicates every message.
func (s *Service) Migrate(ctx context.Context) (*mailstore.MigrationReport, error) {
	return mailstore.Migrate(ctx, s.file, s.db)
}

// EncodeID wraps a backend-native id into the opaque tagged form
// handed to callers.
func EncodeID(backend mailstore.Backend, nativeID string) string {
	return string(backend) + ":" + base64.RawURLEncoding.EncodeToString([]byte(nativeID))
}

// DecodeID splits a tagged id back into backend tag and native id.
func DecodeID(id string) (mailstore.Backend, string, error) {
	tag, encoded, found := strings.Cut(id, ":")
	if !found {
		return "", "", fmt.Errorf("%w: malformed id %q", mailstore.ErrNotFound, id)
	}
	native, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("%w: malformed id %q", mailstore.ErrNotFound, id)
	}
	return mailstore.Backend(tag), string(native), nil
}

func (s *Service) resolve(id string) (mailstore.Store, string, error) {
	backend, nativeID, err := DecodeID(id)
	if err != nil {
		return nil, "", err
	}
	switch backend {
	case mailstore.BackendFile:
		return s.file, nativeID, nil
	case mailstore.BackendDB:
		return s.db, nativeID, nil
	default:
		return nil, "", fmt.Errorf("%w: unknown backend tag %q", mailstore.ErrNotFound, string(backend))
	}
}

func tagSummaries(backend mailstore.Backend, summaries []mailstore.Summary) {
	for i := range summaries {
		summaries[i].ID = EncodeID(backend, summaries[i].ID)
	}
}
