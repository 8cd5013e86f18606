// Package mailapi exposes the query service over HTTP. Message ids in
// URLs are the opaque tagged ids handed out by the service, so they
// stay valid regardless of which backend is active.
package mailapi

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailservice"
	"github.com/Muszic/SMTP-Email-Server/pkg/mailstore"
)

// Handler handles mail API endpoints.
type Handler struct {
	service *mailservice.Service
}

// NewHandler creates a new mail API handler.
func NewHandler(service *mailservice.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers mail routes to the fiber app.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	group := app.Group("/api")

	group.Get("/status", h.getStatus)
	group.Get("/mailboxes", h.getMailboxes)
	group.Get("/mailboxes/:address/messages", h.listMessages)
	group.Get("/mailboxes/:address/search", h.searchMessages)
	group.Get("/messages/:id", h.getMessage)
	group.Post("/messages/:id/read", h.markRead)
	group.Delete("/messages/:id", h.deleteMessage)
	group.Post("/migrate", h.migrate)
}

func (h *Handler) getStatus(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{Backend: string(h.service.Backend())})
}

func (h *Handler) getMailboxes(c *fiber.Ctx) error {
	mailboxes, err := h.service.Mailboxes(c.Context())
	if err != nil {
		return storeError(c, err)
	}
	if mailboxes == nil {
		mailboxes = []string{}
	}
	return c.JSON(MailboxesResponse{Mailboxes: mailboxes})
}

func (h *Handler) listMessages(c *fiber.Ctx) error {
	address := c.Params("address")
	limit, offset := pagination(c)

	messages, err := h.service.List(c.Context(), address, limit, offset)
	if err != nil {
		return storeError(c, err)
	}
	if messages == nil {
		messages = []mailstore.Summary{}
	}
	return c.JSON(MessageListResponse{Messages: messages})
}

func (h *Handler) searchMessages(c *fiber.Ctx) error {
	address := c.Params("address")
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Missing query parameter q",
		})
	}
	limit, offset := pagination(c)

	messages, err := h.service.Search(c.Context(), address, query, limit, offset)
	if err != nil {
		return storeError(c, err)
	}
	if messages == nil {
		messages = []mailstore.Summary{}
	}
	return c.JSON(MessageListResponse{Messages: messages})
}

func (h *Handler) getMessage(c *fiber.Ctx) error {
	message, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(message)
}

func (h *Handler) markRead(c *fiber.Ctx) error {
	if err := h.service.MarkRead(c.Context(), c.Params("id")); err != nil {
		return storeError(c, err)
	}
	return c.JSON(MarkReadResponse{Success: true})
}

func (h *Handler) deleteMessage(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id")); err != nil {
		return storeError(c, err)
	}
	return c.JSON(DeleteResponse{Success: true})
}

func (h *Handler) migrate(c *fiber.Ctx) error {
	report, err := h.service.Migrate(c.Context())
	if err != nil {
		log.Printf("ERROR: Migration failed: %v", err)
		return storeError(c, err)
	}
	return c.JSON(MigrateResponse{
		Processed: report.Processed,
		Migrated:  report.Migrated,
		Failed:    report.Failed,
	})
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return limit, offset
}

// storeError translates store errors into HTTP status codes.
func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, mailstore.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, mailstore.ErrNotSupported):
		return c.Status(fiber.StatusMethodNotAllowed).JSON(ErrorResponse{Error: err.Error()})
	default:
		log.Printf("ERROR: Request failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}
