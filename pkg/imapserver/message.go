package imapserver

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/backendutil"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailservice"
)

// Message is one stored message seen through an IMAP session. The raw
// bytes are pulled from the store on first use and served verbatim.
type Message struct {
	service *mailservice.Service

	ID    string
	Uid   uint32
	Date  time.Time
	Flags []string

	raw []byte
}

func (m *Message) load() error {
	if m.raw != nil {
		return nil
	}
	msg, err := m.service.Get(context.Background(), m.ID)
	if err != nil {
		return err
	}
	m.raw = msg.Raw
	return nil
}

func (m *Message) entity() (*message.Entity, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	return message.Read(bytes.NewReader(m.raw))
}

func (m *Message) headerAndBody() (textproto.Header, io.Reader, error) {
	if err := m.load(); err != nil {
		return textproto.Header{}, nil, err
	}
	body := bufio.NewReader(bytes.NewReader(m.raw))
	hdr, err := textproto.ReadHeader(body)
	return hdr, body, err
}

// Fetch converts the message into an imap.Message carrying the
// requested items.
func (m *Message) Fetch(seqNum uint32, items []imap.FetchItem) (*imap.Message, error) {
	fetched := imap.NewMessage(seqNum, items)
	for _, item := range items {
		switch item {
		case imap.FetchEnvelope:
			hdr, _, err := m.headerAndBody()
			if err != nil {
				return nil, err
			}
			fetched.Envelope, _ = backendutil.FetchEnvelope(hdr)
		case imap.FetchBody, imap.FetchBodyStructure:
			hdr, body, err := m.headerAndBody()
			if err != nil {
				return nil, err
			}
			fetched.BodyStructure, _ = backendutil.FetchBodyStructure(hdr, body, item == imap.FetchBodyStructure)
		case imap.FetchFlags:
			fetched.Flags = m.Flags
		case imap.FetchInternalDate:
			fetched.InternalDate = m.Date
		case imap.FetchRFC822Size:
			if err := m.load(); err != nil {
				return nil, err
			}
			fetched.Size = uint32(len(m.raw))
		case imap.FetchUid:
			fetched.Uid = m.Uid
		default:
			section, err := imap.ParseBodySectionName(item)
			if err != nil {
				break
			}
			hdr, body, err := m.headerAndBody()
			if err != nil {
				return nil, err
			}
			l, _ := backendutil.FetchBodySection(hdr, body, section)
			fetched.Body[section] = l
		}
	}

	return fetched, nil
}

// Match checks the message against search criteria.
func (m *Message) Match(seqNum uint32, c *imap.SearchCriteria) (bool, error) {
	e, err := m.entity()
	if err != nil {
		return false, err
	}
	return backendutil.Match(e, seqNum, m.Uid, m.Date, m.Flags, c)
}
