package mailstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Muszic/SMTP-Email-Server/pkg/mail"
	"github.com/Muszic/SMTP-Email-Server/pkg/mailbox"
)

const emlExt = ".eml"

// timestampLayout is the fixed-width, zero-padded filename prefix, so
// an ascending name sort is a chronological sort.
const timestampLayout = "20060102150405"

// FileStoreConfig configures the file backend.
type FileStoreConfig struct {
	// Root is the directory holding one subdirectory per mailbox.
	Root string
}

// DefaultFileStoreConfig returns the default file backend configuration.
func DefaultFileStoreConfig() FileStoreConfig {
	return FileStoreConfig{Root: "mailboxes"}
}

// FileStore persists each message as an immutable .eml blob inside a
// per-mailbox directory. Metadata is never cached: every read parses
// the stored bytes again.
//
// Message ids have the form "{identifier}/{timestamp}_{token}" where
// identifier is the resolved mailbox directory name.
type FileStore struct {
	root string
}

// NewFileStore creates the file backend, creating the root directory
// if it does not exist.
func NewFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.Root == "" {
		config = DefaultFileStoreConfig()
	}
	if err := os.MkdirAll(config.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mailbox root %s: %w", config.Root, err)
	}
	return &FileStore{root: config.Root}, nil
}

// Backend identifies the implementation.
func (s *FileStore) Backend() Backend { return BackendFile }

// Root returns the mailbox root directory.
func (s *FileStore) Root() string { return s.root }

// Write stores raw bytes as a new message file in the recipient's
// mailbox directory. The mailbox is auto-provisioned on first write.
// The file is written under a temporary name and renamed into place,
// so a crash mid-write never leaves a partial file visible under the
// final name.
func (s *FileStore) Write(ctx context.Context, recipient string, raw []byte) (string, error) {
	identifier := mailbox.ToIdentifier(recipient)
	dir := filepath.Join(s.root, identifier)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to provision mailbox for %s: %w", recipient, err)
	}

	name := time.Now().UTC().Format(timestampLayout) + "_" + uuid.New().String()
	tmpPath := filepath.Join(dir, "."+name+".tmp")
	finalPath := filepath.Join(dir, name+emlExt)

	if err := os.WriteFile(tmpPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write message for %s: %w", recipient, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize message for %s: %w", recipient, err)
	}

	log.Printf("Stored email for %s as %s", recipient, name)
	return identifier + "/" + name, nil
}

// Mailboxes lists every mailbox directory as an address.
func (s *FileStore) Mailboxes(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}

	var addresses []string
	for _, entry := range entries {
		if entry.IsDir() {
			addresses = append(addresses, mailbox.ToAddress(entry.Name()))
		}
	}
	sort.Strings(addresses)
	return addresses, nil
}

// List returns the recipient's messages newest first. A mailbox that
// was never provisioned yields an empty result, not an error.
func (s *FileStore) List(ctx context.Context, recipient string, limit, offset int) ([]Summary, error) {
	names, err := s.messageNames(recipient)
	if err != nil {
		return nil, err
	}

	// Ascending name order is chronological; present in reverse.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	limit = normalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(names) {
		return []Summary{}, nil
	}
	names = names[offset:]
	if len(names) > limit {
		names = names[:limit]
	}

	identifier := mailbox.ToIdentifier(recipient)
	summaries := make([]Summary, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(s.root, identifier, name+emlExt))
		if err != nil {
			log.Printf("ERROR: Failed to read message %s/%s: %v", identifier, name, err)
			continue
		}
		summaries = append(summaries, s.summarize(identifier, name, raw))
	}
	return summaries, nil
}

// Get loads and parses one message by id.
func (s *FileStore) Get(ctx context.Context, id string) (*Message, error) {
	identifier, name, err := splitID(id)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(s.root, identifier, name+emlExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read message %s: %w", id, err)
	}

	email := mail.ParseMessage(raw)
	return &Message{
		Summary:     s.summarize(identifier, name, raw),
		Body:        email.Body,
		Attachments: email.AttachmentNames(),
		Raw:         raw,
	}, nil
}

// MarkRead is not supported: the file layout has no read-flag slot.
func (s *FileStore) MarkRead(ctx context.Context, id string) error {
	return ErrNotSupported
}

// Delete removes the message file. A missing file reports ErrNotFound,
// consistent with the relational backend.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	identifier, name, err := splitID(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.root, identifier, name+emlExt)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	return nil
}

// Search filters the recipient's messages by case-insensitive
// substring match over subject and body. Every candidate is parsed;
// there is no index to consult.
func (s *FileStore) Search(ctx context.Context, recipient, query string, limit, offset int) ([]Summary, error) {
	names, err := s.messageNames(recipient)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	identifier := mailbox.ToIdentifier(recipient)
	needle := strings.ToLower(query)

	var matches []Summary
	limit = normalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}
	skipped := 0
	for _, name := range names {
		if len(matches) == limit {
			break
		}

		raw, err := os.ReadFile(filepath.Join(s.root, identifier, name+emlExt))
		if err != nil {
			log.Printf("ERROR: Failed to read message %s/%s: %v", identifier, name, err)
			continue
		}

		email := mail.ParseMessage(raw)
		if !strings.Contains(strings.ToLower(email.Subject), needle) &&
			!strings.Contains(strings.ToLower(email.Body), needle) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		matches = append(matches, s.summarize(identifier, name, raw))
	}
	if matches == nil {
		matches = []Summary{}
	}
	return matches, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

// messageNames returns the .eml basenames (without extension) of a
// mailbox in ascending name order.
func (s *FileStore) messageNames(recipient string) ([]string, error) {
	dir := filepath.Join(s.root, mailbox.ToIdentifier(recipient))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list mailbox for %s: %w", recipient, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), emlExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), emlExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) summarize(identifier, name string, raw []byte) Summary {
	email := mail.ParseMessage(raw)
	return Summary{
		ID:         identifier + "/" + name,
		Sender:     email.From,
		Recipient:  mailbox.ToAddress(identifier),
		Subject:    email.Subject,
		ReceivedAt: receivedFromName(name),
		IsRead:     false,
	}
}

// receivedFromName recovers the store timestamp from the filename
// prefix assigned at write time.
func receivedFromName(name string) time.Time {
	if len(name) < len(timestampLayout) {
		return time.Time{}
	}
	ts, err := time.ParseInLocation(timestampLayout, name[:len(timestampLayout)], time.UTC)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func splitID(id string) (identifier, name string, err error) {
	parts := strings.SplitN(id, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" ||
		strings.Contains(parts[1], "/") || strings.Contains(id, "..") {
		return "", "", fmt.Errorf("%w: invalid file message id %q", ErrNotFound, id)
	}
	return parts[0], parts[1], nil
}
