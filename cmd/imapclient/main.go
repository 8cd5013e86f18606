// Command imapclient reads a mailbox over IMAP and prints the most
// recent messages.
package main

import (
	"flag"
	"io"
	"log"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

func main() {
	imapAddr := flag.String("imap-addr", "localhost:1143", "IMAP server address")
	username := flag.String("username", "recipient@example.com", "mailbox address to read (any password works)")
	password := flag.String("password", "testpass", "IMAP password (any value works)")
	count := flag.Uint("count", 5, "number of recent messages to fetch")
	flag.Parse()

	log.Println("Connecting to IMAP server at", *imapAddr)
	c, err := client.Dial(*imapAddr)
	if err != nil {
		log.Fatal("Failed to connect to IMAP server:", err)
	}
	defer func() {
		c.Logout()
		log.Println("Logged out from IMAP server")
	}()

	if err := c.Login(*username, *password); err != nil {
		log.Fatal("Failed to login:", err)
	}
	log.Println("Logged in as", *username)

	mbox, err := c.Select("INBOX", false)
	if err != nil {
		log.Fatal("Failed to select INBOX:", err)
	}
	log.Printf("INBOX has %d messages, %d unseen", mbox.Messages, mbox.Unseen)

	if mbox.Messages == 0 {
		log.Println("No messages found")
		return
	}

	from := uint32(1)
	if mbox.Messages > uint32(*count) {
		from = mbox.Messages - uint32(*count) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	for msg := range messages {
		log.Printf("* Message %d (UID %d):", msg.SeqNum, msg.Uid)
		log.Printf("  Subject: %s", msg.Envelope.Subject)
		log.Printf("  Flags: %v", msg.Flags)

		r := msg.GetBody(section)
		if r == nil {
			log.Println("  No message body")
			continue
		}

		mr, err := mail.CreateReader(r)
		if err != nil {
			log.Println("  Error parsing message:", err)
			continue
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				log.Println("  Error reading part:", err)
				break
			}
			switch header := part.Header.(type) {
			case *mail.InlineHeader:
				body, _ := io.ReadAll(part.Body)
				log.Printf("  Body: %s", string(body))
			case *mail.AttachmentHeader:
				filename, _ := header.Filename()
				log.Printf("  Attachment: %s", filename)
			}
		}
	}

	if err := <-done; err != nil {
		log.Fatal("Fetch failed:", err)
	}
}
