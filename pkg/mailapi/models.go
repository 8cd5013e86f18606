package mailapi

import "github.com/Muszic/SMTP-Email-Server/pkg/mailstore"

// ErrorResponse is the error payload for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse reports which storage backend serves queries.
type StatusResponse struct {
	Backend string `json:"backend"`
}

// MailboxesResponse lists the known mailbox addresses.
type MailboxesResponse struct {
	Mailboxes []string `json:"mailboxes"`
}

// MessageListResponse carries a page of message summaries.
type MessageListResponse struct {
	Messages []mailstore.Summary `json:"messages"`
}

// MarkReadResponse confirms a read-flag update.
type MarkReadResponse struct {
	Success bool `json:"success"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// MigrateResponse reports the outcome of a migration run.
type MigrateResponse struct {
	Processed int `json:"processed"`
	Migrated  int `json:"migrated"`
	Failed    int `json:"failed"`
}
