package mailapi

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailservice"
)

// Config holds the configuration for the HTTP API server.
type Config struct {
	Host string
	Port int
}

// DefaultConfig returns the default configuration for the API server.
func DefaultConfig() Config {
	return Config{
		Host: "0.0.0.0",
		Port: 8080,
	}
}

// Server serves the mail API over HTTP.
type Server struct {
	app    *fiber.App
	config Config
}

// NewServer creates a new API server around the query service.
func NewServer(config Config, service *mailservice.Service) *Server {
	app := fiber.New(fiber.Config{
		AppName: "mailserver",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Error: err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	NewHandler(service).RegisterRoutes(app)

	return &Server{
		app:    app,
		config: config,
	}
}

// App returns the underlying fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the API server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	log.Printf("Starting HTTP API server on %s", addr)
	return s.app.Listen(addr)
}

// Stop stops the API server.
func (s *Server) Stop() error {
	log.Printf("Stopping HTTP API server")
	return s.app.Shutdown()
}
