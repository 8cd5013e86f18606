// Package smtpserver accepts inbound mail over SMTP and files each
// message into the configured message store, one independent copy per
// recipient.
package smtpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/redis/go-redis/v9"

	mailmodel "github.com/Muszic/SMTP-Email-Server/pkg/mail"
	"github.com/Muszic/SMTP-Email-Server/pkg/mailstore"
)

// Config holds the configuration for the SMTP server.
type Config struct {
	Host              string
	Port              int
	Domain            string
	AllowInsecureAuth bool
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxMessageBytes   int
	MaxRecipients     int

	// NotifyRedisAddr enables delivery notifications on a Redis queue
	// when non-empty. Password and DB are ignored otherwise.
	NotifyRedisAddr     string
	NotifyRedisPassword string
	NotifyRedisDB       int
}

// DefaultConfig returns the default configuration for the SMTP server.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              1025,
		Domain:            "localhost",
		AllowInsecureAuth: true,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxMessageBytes:   10 * 1024 * 1024, // 10 MB
		MaxRecipients:     50,
	}
}

// Server represents the SMTP server.
type Server struct {
	config     Config
	smtpServer *smtp.Server
	store      mailstore.Store
	notifier   *redis.Client
}

// NewServer creates a new SMTP server writing into the given store.
func NewServer(config Config, store mailstore.Store) (*Server, error) {
	log.Printf("Creating new SMTP server with config: host=%s, port=%d, domain=%s, backend=%s",
		config.Host, config.Port, config.Domain, store.Backend())

	var notifier *redis.Client
	if config.NotifyRedisAddr != "" {
		notifier = redis.NewClient(&redis.Options{
			Addr:     config.NotifyRedisAddr,
			Password: config.NotifyRedisPassword,
			DB:       config.NotifyRedisDB,
		})
		if _, err := notifier.Ping(context.Background()).Result(); err != nil {
			log.Printf("ERROR: Failed to connect to Redis at %s: %v", config.NotifyRedisAddr, err)
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Printf("Delivery notifications enabled via Redis at %s", config.NotifyRedisAddr)
	}

	be := &Backend{
		store:    store,
		notifier: notifier,
	}

	smtpServer := smtp.NewServer(be)
	smtpServer.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	smtpServer.Domain = config.Domain
	smtpServer.ReadTimeout = config.ReadTimeout
	smtpServer.WriteTimeout = config.WriteTimeout
	smtpServer.MaxMessageBytes = int64(config.MaxMessageBytes)
	smtpServer.MaxRecipients = config.MaxRecipients
	smtpServer.AllowInsecureAuth = config.AllowInsecureAuth

	return &Server{
		config:     config,
		smtpServer: smtpServer,
		store:      store,
		notifier:   notifier,
	}, nil
}

// Start starts the SMTP server.
func (s *Server) Start() error {
	log.Printf("Starting SMTP server at %s with domain %s", s.smtpServer.Addr, s.smtpServer.Domain)
	err := s.smtpServer.ListenAndServe()
	if err != nil {
		log.Printf("ERROR: SMTP server failed: %v", err)
	}
	return err
}

// Stop stops the SMTP server.
func (s *Server) Stop() error {
	log.Printf("Stopping SMTP server at %s", s.smtpServer.Addr)
	if err := s.smtpServer.Close(); err != nil {
		log.Printf("ERROR: Failed to stop SMTP server: %v", err)
		return err
	}
	return nil
}

// Backend implements the SMTP server backend. Sessions share nothing
// but the store itself.
type Backend struct {
	store    mailstore.Store
	notifier *redis.Client
}

// NewSession creates a new SMTP session.
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	log.Printf("New SMTP session from %s", c.Conn().RemoteAddr())
	return &Session{
		store:    b.store,
		notifier: b.notifier,
	}, nil
}

// Session represents one SMTP delivery session, moving through
// envelope collection (MAIL FROM, RCPT TO) into dispatch (DATA).
type Session struct {
	store    mailstore.Store
	notifier *redis.Client

	from string
	to   []string
}

// Mail handles the MAIL FROM command.
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	log.Printf("MAIL FROM: %s", from)
	s.from = from
	return nil
}

// Rcpt handles the RCPT TO command.
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	log.Printf("RCPT TO: %s", to)
	s.to = append(s.to, to)
	return nil
}

// Data handles the DATA command: the raw message bytes are written
// once per envelope recipient. A failing recipient is logged and
// skipped; the session fails only when every recipient failed. A
// message with no recipients completes without storing anything.
func (s *Session) Data(r io.Reader) error {
	log.Printf("DATA command received from %s to %v", s.from, s.to)

	data, err := io.ReadAll(r)
	if err != nil {
		log.Printf("ERROR: Failed to read message data: %v", err)
		return err
	}
	log.Printf("Received %d bytes of message data", len(data))

	email := mailmodel.ParseMessage(data)
	log.Printf("Message subject: %s", email.Subject)

	if len(s.to) == 0 {
		log.Printf("Message from %s has no recipients, nothing stored", s.from)
		return nil
	}

	ctx := context.Background()
	var stored []string
	for _, recipient := range s.to {
		id, err := s.store.Write(ctx, recipient, data)
		if err != nil {
			log.Printf("ERROR: Failed to store message for %s: %v", recipient, err)
			continue
		}
		stored = append(stored, id)
	}

	if len(stored) == 0 {
		log.Printf("ERROR: Message from %s could not be stored for any of %d recipients", s.from, len(s.to))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Error in processing",
		}
	}
	if len(stored) < len(s.to) {
		log.Printf("Partial delivery from %s: %d of %d recipients stored", s.from, len(stored), len(s.to))
	}

	s.notify(ctx, email, stored)
	return nil
}

// Reset resets the session.
func (s *Session) Reset() {
	log.Printf("Resetting SMTP session")
	s.from = ""
	s.to = []string{}
}

// Logout handles the QUIT command.
func (s *Session) Logout() error {
	log.Printf("SMTP session logout")
	return nil
}

// deliveryNotice is the record pushed onto the notification queue for
// each accepted message.
type deliveryNotice struct {
	From       string   `json:"from"`
	To         []string `json:"to"`
	Subject    string   `json:"subject"`
	MessageIDs []string `json:"message_ids"`
	ReceivedAt string   `json:"received_at"`
}

// notify publishes an accepted-message record to the Redis queue. A
// notification failure never fails the delivery session.
func (s *Session) notify(ctx context.Context, email *mailmodel.Email, stored []string) {
	if s.notifier == nil {
		return
	}

	uid, err := email.UID()
	if err != nil {
		log.Printf("ERROR: Failed to hash message for notification: %v", err)
		return
	}

	notice := deliveryNotice{
		From:       s.from,
		To:         s.to,
		Subject:    email.Subject,
		MessageIDs: stored,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
	}
	noticeJSON, err := json.Marshal(notice)
	if err != nil {
		log.Printf("ERROR: Failed to encode notification: %v", err)
		return
	}

	key := "mail:in:" + uid
	if err := s.notifier.HSet(ctx, key, "data", string(noticeJSON)).Err(); err != nil {
		log.Printf("ERROR: Failed to store notification %s: %v", key, err)
		return
	}
	if err := s.notifier.RPush(ctx, "mail:in", key).Err(); err != nil {
		log.Printf("ERROR: Failed to queue notification %s: %v", key, err)
		return
	}
	log.Printf("Queued delivery notification %s", key)
}
