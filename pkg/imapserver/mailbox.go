package imapserver

import (
	"bytes"
	"context"
	"errors"
	"log"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/backendutil"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailservice"
	"github.com/Muszic/SMTP-Email-Server/pkg/mailstore"
)

// maxSessionMessages caps how many messages one IMAP session loads.
const maxSessionMessages = 10000

// Mailbox serves one recipient's messages as the INBOX folder. UIDs
// are sequence positions in received order, assigned per session.
type Mailbox struct {
	service  *mailservice.Service
	address  string
	messages []*Message
}

func newMailbox(service *mailservice.Service, address string) *Mailbox {
	return &Mailbox{
		service: service,
		address: address,
	}
}

// Name returns the mailbox name.
func (m *Mailbox) Name() string {
	return inboxName
}

// Info returns information about the mailbox.
func (m *Mailbox) Info() (*imap.MailboxInfo, error) {
	return &imap.MailboxInfo{
		Attributes: []string{},
		Delimiter:  "/",
		Name:       inboxName,
	}, nil
}

// loadMessages pulls the recipient's listing from the store, oldest
// first, and assigns session UIDs.
func (m *Mailbox) loadMessages() error {
	summaries, err := m.service.List(context.Background(), m.address, maxSessionMessages, 0)
	if err != nil {
		log.Printf("ERROR: Failed to list messages for %s: %v", m.address, err)
		return err
	}

	// The listing is newest first; UIDs count up from the oldest.
	m.messages = make([]*Message, 0, len(summaries))
	for i := len(summaries) - 1; i >= 0; i-- {
		s := summaries[i]
		flags := []string{}
		if s.IsRead {
			flags = append(flags, imap.SeenFlag)
		}
		m.messages = append(m.messages, &Message{
			service: m.service,
			ID:      s.ID,
			Uid:     uint32(len(summaries) - i),
			Date:    s.ReceivedAt,
			Flags:   flags,
		})
	}

	log.Printf("Loaded %d messages for %s", len(m.messages), m.address)
	return nil
}

// Status returns the mailbox status.
func (m *Mailbox) Status(items []imap.StatusItem) (*imap.MailboxStatus, error) {
	log.Printf("Getting status for mailbox of %s", m.address)

	if err := m.loadMessages(); err != nil {
		return nil, err
	}

	status := imap.NewMailboxStatus(inboxName, items)
	status.Flags = []string{imap.SeenFlag, imap.DeletedFlag}
	status.PermanentFlags = []string{imap.SeenFlag, imap.DeletedFlag}

	for _, item := range items {
		switch item {
		case imap.StatusMessages:
			status.Messages = uint32(len(m.messages))
		case imap.StatusRecent:
			status.Recent = 0
		case imap.StatusUnseen:
			unseen := 0
			for _, msg := range m.messages {
				if !containsFlag(msg.Flags, imap.SeenFlag) {
					unseen++
				}
			}
			status.Unseen = uint32(unseen)
		case imap.StatusUidNext:
			status.UidNext = uint32(len(m.messages) + 1)
		case imap.StatusUidValidity:
			status.UidValidity = 1
		}
	}

	return status, nil
}

// SetSubscribed sets the mailbox subscription status. Subscriptions
// are accepted but not tracked.
func (m *Mailbox) SetSubscribed(subscribed bool) error {
	return nil
}

// Check checks the mailbox for updates.
func (m *Mailbox) Check() error {
	return m.loadMessages()
}

// ListMessages returns the messages selected by the sequence set.
func (m *Mailbox) ListMessages(uid bool, seqSet *imap.SeqSet, items []imap.FetchItem, ch chan<- *imap.Message) error {
	defer close(ch)

	for i, msg := range m.messages {
		seqNum := uint32(i + 1)

		var id uint32
		if uid {
			id = msg.Uid
		} else {
			id = seqNum
		}
		if !seqSet.Contains(id) {
			continue
		}

		imapMsg, err := msg.Fetch(seqNum, items)
		if err != nil {
			log.Printf("ERROR: Failed to fetch message %s: %v", msg.ID, err)
			continue
		}

		ch <- imapMsg
	}

	return nil
}

// SearchMessages searches for messages matching the given criteria.
func (m *Mailbox) SearchMessages(uid bool, criteria *imap.SearchCriteria) ([]uint32, error) {
	var ids []uint32
	for i, msg := range m.messages {
		seqNum := uint32(i + 1)

		ok, err := msg.Match(seqNum, criteria)
		if err != nil {
			log.Printf("ERROR: Failed to match message %s: %v", msg.ID, err)
			continue
		}
		if !ok {
			continue
		}

		if uid {
			ids = append(ids, msg.Uid)
		} else {
			ids = append(ids, seqNum)
		}
	}
	return ids, nil
}

// CreateMessage files an appended message into the recipient's mailbox
// through the same write path the SMTP listener uses.
func (m *Mailbox) CreateMessage(flags []string, date time.Time, body imap.Literal) error {
	log.Printf("Appending message to mailbox of %s", m.address)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		log.Printf("ERROR: Failed to read appended message: %v", err)
		return err
	}

	if _, err := m.service.Active().Write(context.Background(), m.address, buf.Bytes()); err != nil {
		log.Printf("ERROR: Failed to store appended message: %v", err)
		return err
	}

	return m.loadMessages()
}

// UpdateMessagesFlags updates flags for the selected messages. Adding
// the Seen flag marks the message read in the store; the file backend
// cannot persist that, so there the flag only lives for the session.
func (m *Mailbox) UpdateMessagesFlags(uid bool, seqSet *imap.SeqSet, operation imap.FlagsOp, flags []string) error {
	log.Printf("Updating flags for mailbox of %s, operation: %v, flags: %v", m.address, operation, flags)

	for i, msg := range m.messages {
		var id uint32
		if uid {
			id = msg.Uid
		} else {
			id = uint32(i + 1)
		}
		if !seqSet.Contains(id) {
			continue
		}

		wasSeen := containsFlag(msg.Flags, imap.SeenFlag)
		msg.Flags = backendutil.UpdateFlags(msg.Flags, operation, flags)

		if !wasSeen && containsFlag(msg.Flags, imap.SeenFlag) {
			err := m.service.MarkRead(context.Background(), msg.ID)
			if err != nil && !errors.Is(err, mailstore.ErrNotSupported) {
				log.Printf("ERROR: Failed to mark message %s as read: %v", msg.ID, err)
			}
		}
	}

	return nil
}

// Expunge permanently removes messages flagged as deleted.
func (m *Mailbox) Expunge() error {
	log.Printf("Expunging mailbox of %s", m.address)

	kept := m.messages[:0]
	for _, msg := range m.messages {
		if !containsFlag(msg.Flags, imap.DeletedFlag) {
			kept = append(kept, msg)
			continue
		}
		if err := m.service.Delete(context.Background(), msg.ID); err != nil {
			log.Printf("ERROR: Failed to delete message %s: %v", msg.ID, err)
			kept = append(kept, msg)
		}
	}
	m.messages = kept

	return nil
}

func containsFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
