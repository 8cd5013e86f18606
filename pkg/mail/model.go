// Package mail holds the parsed representation of an email message and
// the parser that produces it from raw RFC 5322 bytes. Parsing is
// independent of the storage backends: both stores call ParseMessage on
// the verbatim bytes they hold.
package mail

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Defaults used when a message is missing the corresponding header or
// cannot be parsed at all.
const (
	DefaultSubject = "No Subject"
	DefaultSender  = "Unknown"
)

// Email is the parsed form of a message. Attachments are name-only:
// the raw bytes stay in the stores, so attachment content can always
// be recovered by re-parsing.
type Email struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	MessageID   string       `json:"message_id,omitempty"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment records an attachment discovered during the MIME walk.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// AttachmentNames returns the ordered list of attachment filenames.
func (e *Email) AttachmentNames() []string {
	names := make([]string, 0, len(e.Attachments))
	for _, att := range e.Attachments {
		names = append(names, att.Filename)
	}
	return names
}

// UID returns the Blake2b-192 hash of the email in JSON form, used as
// a content-derived identifier for notification records.
func (e *Email) UID() (string, error) {
	emailJSON, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email: %w", err)
	}

	hash, err := blake2b.New(24, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create Blake2b hash: %w", err)
	}

	if _, err := hash.Write(emailJSON); err != nil {
		return "", fmt.Errorf("failed to write to hash: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
