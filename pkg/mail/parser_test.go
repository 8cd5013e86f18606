package mail

import (
	"strings"
	"testing"
)

const simpleMessage = "From: alice@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Hello\r\n" +
	"Message-Id: <abc123@example.com>\r\n" +
	"\r\n" +
	"World\r\n"

func TestParseSimpleMessage(t *testing.T) {
	email := ParseMessage([]byte(simpleMessage))

	if email.From != "alice@example.com" {
		t.Errorf("From = %q, want alice@example.com", email.From)
	}
	if email.Subject != "Hello" {
		t.Errorf("Subject = %q, want Hello", email.Subject)
	}
	if email.MessageID != "<abc123@example.com>" {
		t.Errorf("MessageID = %q", email.MessageID)
	}
	if strings.TrimSpace(email.Body) != "World" {
		t.Errorf("Body = %q, want World", email.Body)
	}
	if len(email.Attachments) != 0 {
		t.Errorf("expected no attachments, got %d", len(email.Attachments))
	}
}

func TestParseMultipartWithAttachment(t *testing.T) {
	msg := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Report\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"frontier\"\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"See attachment.\r\n" +
		"--frontier\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
		"\r\n" +
		"%PDF-fake\r\n" +
		"--frontier--\r\n"

	email := ParseMessage([]byte(msg))

	if strings.TrimSpace(email.Body) != "See attachment." {
		t.Errorf("Body = %q", email.Body)
	}
	if len(email.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(email.Attachments))
	}
	if email.Attachments[0].Filename != "report.pdf" {
		t.Errorf("attachment filename = %q", email.Attachments[0].Filename)
	}
	if email.Attachments[0].ContentType != "application/pdf" {
		t.Errorf("attachment content type = %q", email.Attachments[0].ContentType)
	}
}

// The first text/plain part wins even when later parts are also plain
// text.
func TestParseFirstPlainTextWins(t *testing.T) {
	msg := "From: a@b.c\r\n" +
		"Content-Type: multipart/alternative; boundary=\"x\"\r\n" +
		"\r\n" +
		"--x\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"first part\r\n" +
		"--x\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"second part\r\n" +
		"--x--\r\n"

	email := ParseMessage([]byte(msg))
	if strings.TrimSpace(email.Body) != "first part" {
		t.Errorf("Body = %q, want first part", email.Body)
	}
}

// Nested multipart parts are walked depth-first.
func TestParseNestedMultipart(t *testing.T) {
	msg := "From: a@b.c\r\n" +
		"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"nested body\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: application/zip\r\n" +
		"Content-Disposition: attachment; filename=\"data.zip\"\r\n" +
		"\r\n" +
		"zipbytes\r\n" +
		"--outer--\r\n"

	email := ParseMessage([]byte(msg))
	if strings.TrimSpace(email.Body) != "nested body" {
		t.Errorf("Body = %q, want nested body", email.Body)
	}
	if len(email.Attachments) != 1 || email.Attachments[0].Filename != "data.zip" {
		t.Errorf("attachments = %+v", email.Attachments)
	}
}

func TestParseMalformedFallsBack(t *testing.T) {
	raw := []byte("this is not an rfc 5322 message at all")

	email := ParseMessage(raw)
	if email.From != DefaultSender {
		t.Errorf("From = %q, want %q", email.From, DefaultSender)
	}
	if email.Subject != DefaultSubject {
		t.Errorf("Subject = %q, want %q", email.Subject, DefaultSubject)
	}
	if email.Body == "" {
		t.Error("expected raw content preserved in body")
	}
}

func TestParseMissingHeadersGetDefaults(t *testing.T) {
	raw := []byte("Date: Mon, 01 Jan 2024 00:00:00 +0000\r\n\r\nbody only\r\n")

	email := ParseMessage(raw)
	if email.From != DefaultSender {
		t.Errorf("From = %q, want %q", email.From, DefaultSender)
	}
	if email.Subject != DefaultSubject {
		t.Errorf("Subject = %q, want %q", email.Subject, DefaultSubject)
	}
}

func TestUIDStable(t *testing.T) {
	email := ParseMessage([]byte(simpleMessage))

	uid1, err := email.UID()
	if err != nil {
		t.Fatalf("UID failed: %v", err)
	}
	uid2, err := email.UID()
	if err != nil {
		t.Fatalf("UID failed: %v", err)
	}
	if uid1 != uid2 {
		t.Errorf("UID not stable: %s vs %s", uid1, uid2)
	}
	if len(uid1) != 48 {
		t.Errorf("expected 48 hex chars for Blake2b-192, got %d", len(uid1))
	}
}
