package imapserver

import (
	"fmt"
	"log"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailservice"
)

// inboxName is the one mailbox every user has. The store keeps a flat
// list per recipient, so there are no other folders to expose.
const inboxName = "INBOX"

// Backend implements the go-imap backend interface on top of the query
// service.
type Backend struct {
	service *mailservice.Service
}

// NewBackend creates a new IMAP backend.
func NewBackend(service *mailservice.Service) *Backend {
	return &Backend{service: service}
}

// Login authenticates a user. Any username/password combination is
// accepted; the username names the mailbox to serve.
func (b *Backend) Login(_ *imap.ConnInfo, username, password string) (backend.User, error) {
	log.Printf("Login attempt for user: %s", username)
	return &User{
		service: b.service,
		address: username,
	}, nil
}

// User represents a user connected to the IMAP server. The login name
// doubles as the recipient address whose mail is served.
type User struct {
	service *mailservice.Service
	address string
}

// Username returns the user's username.
func (u *User) Username() string {
	return u.address
}

// ListMailboxes returns the mailboxes available for this user.
func (u *User) ListMailboxes(subscribed bool) ([]backend.Mailbox, error) {
	log.Printf("Listing mailboxes for user: %s", u.address)
	return []backend.Mailbox{newMailbox(u.service, u.address)}, nil
}

// GetMailbox returns a mailbox by name.
func (u *User) GetMailbox(name string) (backend.Mailbox, error) {
	log.Printf("Getting mailbox %s for user: %s", name, u.address)
	if !strings.EqualFold(name, inboxName) {
		return nil, fmt.Errorf("no such mailbox: %s", name)
	}

	mailbox := newMailbox(u.service, u.address)
	if err := mailbox.loadMessages(); err != nil {
		return nil, err
	}
	return mailbox, nil
}

// CreateMailbox creates a new mailbox. The store keeps one flat list
// per recipient, so extra folders cannot be created.
func (u *User) CreateMailbox(name string) error {
	log.Printf("Refusing to create mailbox %s for user: %s", name, u.address)
	return fmt.Errorf("mailbox creation not supported")
}

// DeleteMailbox deletes a mailbox.
func (u *User) DeleteMailbox(name string) error {
	log.Printf("Refusing to delete mailbox %s for user: %s", name, u.address)
	return fmt.Errorf("mailbox deletion not supported")
}

// RenameMailbox renames a mailbox.
func (u *User) RenameMailbox(existingName, newName string) error {
	log.Printf("Refusing to rename mailbox %s to %s for user: %s", existingName, newName, u.address)
	return fmt.Errorf("mailbox renaming not supported")
}

// Logout is called when a user logs out.
func (u *User) Logout() error {
	log.Printf("User logged out: %s", u.address)
	return nil
}
