// Package imapserver exposes stored mail over IMAP. Each login name is
// a mailbox address; the messages behind it come from the query
// service, so the same mail is visible here and over HTTP.
package imapserver

import (
	"fmt"
	"log"
	"os"

	"github.com/emersion/go-imap/server"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailservice"
)

// Config holds the configuration for the IMAP server.
type Config struct {
	Host              string
	Port              int
	AllowInsecureAuth bool
}

// DefaultConfig returns the default configuration for the IMAP server.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              1143,
		AllowInsecureAuth: true,
	}
}

// Server represents an IMAP server.
type Server struct {
	imapServer *server.Server
	addr       string
}

// NewServer creates a new IMAP server reading from the given service.
func NewServer(config Config, service *mailservice.Service) *Server {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Creating new IMAP server on %s, backend=%s", addr, service.Backend())

	s := &Server{addr: addr}
	s.imapServer = server.New(&Backend{service: service})
	s.imapServer.Addr = addr
	s.imapServer.AllowInsecureAuth = config.AllowInsecureAuth
	s.imapServer.ErrorLog = log.New(os.Stderr, "IMAP SERVER ERROR: ", log.LstdFlags)

	return s
}

// Start starts the IMAP server.
func (s *Server) Start() error {
	log.Printf("Starting IMAP server on %s", s.addr)
	return s.imapServer.ListenAndServe()
}

// Close stops the IMAP server.
func (s *Server) Close() error {
	log.Printf("Stopping IMAP server on %s", s.addr)
	return s.imapServer.Close()
}
