package mail

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseMessage parses raw message bytes into an Email. It never gives
// up on a message: when header parsing fails the fallback parser runs
// and metadata degrades to defaults, so callers can always store the
// raw bytes alongside whatever could be extracted.
//
// Body extraction policy: the first text/plain part found by a
// depth-first walk of the MIME parts wins; parts whose disposition
// marks them as attachments contribute their filename only.
func ParseMessage(raw []byte) *Email {
	data := ensureCRLF(raw)

	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return parseFallback(raw)
	}

	email := &Email{
		From:        strings.TrimSpace(msg.Header.Get("From")),
		Subject:     decodeSubject(msg.Header.Get("Subject")),
		MessageID:   strings.TrimSpace(msg.Header.Get("Message-Id")),
		Attachments: []Attachment{},
	}

	if to := msg.Header.Get("To"); to != "" {
		for _, addr := range strings.Split(to, ",") {
			email.To = append(email.To, strings.TrimSpace(addr))
		}
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
		params = map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		email.walkMultipart(msg.Body, params["boundary"])
	} else {
		if content, err := io.ReadAll(msg.Body); err == nil {
			email.Body = decodeUTF8(content)
		}
	}

	applyDefaults(email)
	return email
}

// walkMultipart walks one multipart level, recursing into nested
// multipart parts so the overall traversal is depth-first.
func (e *Email) walkMultipart(r io.Reader, boundary string) {
	if boundary == "" {
		return
	}

	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			// io.EOF or a malformed part boundary; either way the
			// walk stops with whatever was collected so far.
			return
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = "text/plain"
		}

		partMediaType, partParams, err := mime.ParseMediaType(partContentType)
		if err != nil {
			continue
		}

		if strings.HasPrefix(partMediaType, "multipart/") {
			e.walkMultipart(part, partParams["boundary"])
			continue
		}

		disposition := strings.ToLower(part.Header.Get("Content-Disposition"))
		if strings.Contains(disposition, "attachment") {
			if filename := part.FileName(); filename != "" {
				e.Attachments = append(e.Attachments, Attachment{
					Filename:    filename,
					ContentType: partMediaType,
				})
			}
			continue
		}

		if partMediaType == "text/plain" && e.Body == "" {
			if content, err := io.ReadAll(part); err == nil {
				e.Body = decodeUTF8(content)
			}
		}
	}
}

// parseFallback extracts what it can from bytes that net/mail rejects:
// headers are scanned line by line, everything after the first blank
// line becomes the body.
func parseFallback(raw []byte) *Email {
	email := &Email{Attachments: []Attachment{}}

	content := string(raw)
	parts := strings.SplitN(content, "\r\n\r\n", 2)
	if len(parts) < 2 {
		parts = strings.SplitN(content, "\n\n", 2)
		if len(parts) < 2 {
			email.Body = decodeUTF8(raw)
			applyDefaults(email)
			return email
		}
	}

	for _, line := range strings.Split(parts[0], "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			continue
		}

		headerParts := strings.SplitN(line, ":", 2)
		if len(headerParts) != 2 {
			continue
		}

		name := strings.TrimSpace(headerParts[0])
		value := strings.TrimSpace(headerParts[1])

		switch strings.ToLower(name) {
		case "from":
			email.From = value
		case "subject":
			email.Subject = decodeSubject(value)
		case "message-id":
			email.MessageID = value
		}
	}

	email.Body = decodeUTF8([]byte(parts[1]))
	applyDefaults(email)
	return email
}

func applyDefaults(e *Email) {
	if e.From == "" {
		e.From = DefaultSender
	}
	if e.Subject == "" {
		e.Subject = DefaultSubject
	}
}

// decodeSubject handles RFC 2047 encoded words, falling back to the
// raw header value when decoding fails.
func decodeSubject(subject string) string {
	dec := new(mime.WordDecoder)
	if decoded, err := dec.DecodeHeader(subject); err == nil {
		return strings.TrimSpace(decoded)
	}
	return strings.TrimSpace(subject)
}

// decodeUTF8 runs the bytes through a UTF-8 decoder so invalid
// sequences are replaced instead of propagated into stored metadata.
func decodeUTF8(content []byte) string {
	decoder := unicode.UTF8.NewDecoder()
	reader := transform.NewReader(bytes.NewReader(content), decoder)
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

// ensureCRLF makes sure the data ends with CRLF, which net/mail needs
// to terminate the final header block of header-only messages.
func ensureCRLF(data []byte) []byte {
	if len(data) == 0 || bytes.HasSuffix(data, []byte("\r\n")) {
		return data
	}
	if bytes.HasSuffix(data, []byte("\n")) {
		data = bytes.TrimSuffix(data, []byte("\n"))
	}
	return append(data, []byte("\r\n")...)
}
