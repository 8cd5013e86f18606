package mailapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muszic/SMTP-Email-Server/pkg/mailservice"
	"github.com/Muszic/SMTP-Email-Server/pkg/mailstore"
)

func newTestAPI(t *testing.T, useDatabase bool) (*fiber.App, *mailservice.Service) {
	t.Helper()
	dir := t.TempDir()
	svc, err := mailservice.New(mailservice.Config{
		MailboxRoot:  filepath.Join(dir, "mailboxes"),
		DatabasePath: filepath.Join(dir, "emails.db"),
		UseDatabase:  useDatabase,
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return NewServer(DefaultConfig(), svc).App(), svc
}

func deliver(t *testing.T, svc *mailservice.Service, recipient, subject, body string) {
	t.Helper()
	raw := []byte("From: alice@example.com\r\n" +
		"To: " + recipient + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")
	_, err := svc.Active().Write(context.Background(), recipient, raw)
	require.NoError(t, err)
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, payload
}

func TestAPIStatus(t *testing.T) {
	app, _ := newTestAPI(t, true)

	resp, payload := doRequest(t, app, fiber.MethodGet, "/api/status")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(payload, &status))
	assert.Equal(t, "db", status.Backend)
}

func TestAPIListAndGet(t *testing.T) {
	app, svc := newTestAPI(t, true)
	deliver(t, svc, "bob@example.com", "Hello", "World")

	resp, payload := doRequest(t, app, fiber.MethodGet, "/api/mailboxes/bob@example.com/messages")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list MessageListResponse
	require.NoError(t, json.Unmarshal(payload, &list))
	require.Len(t, list.Messages, 1)
	assert.Equal(t, "Hello", list.Messages[0].Subject)
	assert.False(t, list.Messages[0].IsRead)

	resp, payload = doRequest(t, app, fiber.MethodGet, "/api/messages/"+list.Messages[0].ID)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var msg mailstore.Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Contains(t, msg.Body, "World")
	assert.Equal(t, "alice@example.com", msg.Sender)
}

func TestAPIListUnknownMailboxIsEmpty(t *testing.T) {
	app, _ := newTestAPI(t, true)

	resp, payload := doRequest(t, app, fiber.MethodGet, "/api/mailboxes/nobody@example.com/messages")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list MessageListResponse
	require.NoError(t, json.Unmarshal(payload, &list))
	assert.Empty(t, list.Messages)
}

func TestAPISearch(t *testing.T) {
	app, svc := newTestAPI(t, true)
	deliver(t, svc, "bob@example.com", "Hello", "World")
	deliver(t, svc, "bob@example.com", "Invoice", "please pay")

	resp, payload := doRequest(t, app, fiber.MethodGet, "/api/mailboxes/bob@example.com/search?q=orld")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list MessageListResponse
	require.NoError(t, json.Unmarshal(payload, &list))
	require.Len(t, list.Messages, 1)
	assert.Equal(t, "Hello", list.Messages[0].Subject)

	resp, _ = doRequest(t, app, fiber.MethodGet, "/api/mailboxes/bob@example.com/search")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAPIMarkReadAndDelete(t *testing.T) {
	app, svc := newTestAPI(t, true)
	deliver(t, svc, "bob@example.com", "Hello", "World")

	_, payload := doRequest(t, app, fiber.MethodGet, "/api/mailboxes/bob@example.com/messages")
	var list MessageListResponse
	require.NoError(t, json.Unmarshal(payload, &list))
	require.Len(t, list.Messages, 1)
	id := list.Messages[0].ID

	resp, _ := doRequest(t, app, fiber.MethodPost, "/api/messages/"+id+"/read")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, payload = doRequest(t, app, fiber.MethodGet, "/api/messages/"+id)
	var msg mailstore.Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.True(t, msg.IsRead)

	resp, _ = doRequest(t, app, fiber.MethodDelete, "/api/messages/"+id)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, app, fiber.MethodGet, "/api/messages/"+id)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// Marking read on the file backend maps ErrNotSupported to 405.
func TestAPIMarkReadFileBackend(t *testing.T) {
	app, svc := newTestAPI(t, false)
	deliver(t, svc, "bob@example.com", "Hello", "World")

	_, payload := doRequest(t, app, fiber.MethodGet, "/api/mailboxes/bob@example.com/messages")
	var list MessageListResponse
	require.NoError(t, json.Unmarshal(payload, &list))
	require.Len(t, list.Messages, 1)

	resp, _ := doRequest(t, app, fiber.MethodPost, "/api/messages/"+list.Messages[0].ID+"/read")
	assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPIMigrate(t *testing.T) {
	app, svc := newTestAPI(t, false)
	deliver(t, svc, "bob@example.com", "one", "first body")
	deliver(t, svc, "carol@example.com", "two", "second body")

	resp, payload := doRequest(t, app, fiber.MethodPost, "/api/migrate")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report MigrateResponse
	require.NoError(t, json.Unmarshal(payload, &report))
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Migrated)
	assert.Equal(t, 0, report.Failed)
}

func TestAPIUnknownMessage(t *testing.T) {
	app, _ := newTestAPI(t, true)

	resp, _ := doRequest(t, app, fiber.MethodGet, "/api/messages/bogus")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
