// Command smtpclient sends a test message to the mail server.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
)

func main() {
	host := flag.String("host", "localhost", "SMTP server host")
	port := flag.Int("port", 1025, "SMTP server port")
	from := flag.String("from", "sender@example.com", "Sender email address")
	to := flag.String("to", "recipient@example.com", "Recipient email address (comma-separated for multiple)")
	subject := flag.String("subject", "Test Email", "Email subject")
	message := flag.String("message", "This is a test email sent from the SMTP client.", "Email message body")
	flag.Parse()

	recipients := strings.Split(*to, ",")
	for i, recipient := range recipients {
		recipients[i] = strings.TrimSpace(recipient)
	}

	addr := net.JoinHostPort(*host, fmt.Sprintf("%d", *port))
	log.Printf("Sending message to %v via %s", recipients, addr)

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", *from)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&body, "Subject: %s\r\n", *subject)
	fmt.Fprintf(&body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&body, "Message-Id: <%d@smtpclient>\r\n", time.Now().UnixNano())
	body.WriteString("\r\n")
	body.WriteString(*message)
	body.WriteString("\r\n")

	err := smtp.SendMail(addr, nil, *from, recipients, strings.NewReader(body.String()))
	if err != nil {
		log.Fatalf("Failed to send message: %v", err)
	}

	log.Printf("Message sent to %d recipient(s)", len(recipients))
}
