package types

import "time"

// Email represents a synchronized message as stored. The natural key is
// (Owner, ServerID, UID, Folder).
type Email struct {
	ID         int64     `json:"id" db:"id"`
	Owner      string    `json:"owner" db:"owner"`
	ServerID   int64     `json:"server_id" db:"server_id"`
	ServerName string    `json:"server_name,omitempty" db:"server_name"`
	UID        uint32    `json:"uid" db:"uid"`
	Folder     string    `json:"folder" db:"folder"`
	Subject    string    `json:"subject" db:"subject"`
	Sender     string    `json:"sender" db:"sender"`
	Recipient  string    `json:"recipient" db:"recipient"`
	Date       time.Time `json:"date" db:"-"`
	BodyText   string    `json:"body_text,omitempty" db:"body_text"`
	BodyHTML   string    `json:"body_html,omitempty" db:"body_html"`
	InReplyTo  string    `json:"in_reply_to,omitempty" db:"in_reply_to"`
	References string    `json:"references,omitempty" db:"refs"`
	ThreadID   string    `json:"thread_id" db:"thread_id"`
	CreatedAt  time.Time `json:"created_at" db:"-"`
	UpdatedAt  time.Time `json:"updated_at" db:"-"`
}

// EmailKey identifies a stored email.
type EmailKey struct {
	Owner    string
	ServerID int64
	UID      uint32
	Folder   string
}

// Key returns the natural key of the email.
func (e *Email) Key() EmailKey {
	return EmailKey{Owner: e.Owner, ServerID: e.ServerID, UID: e.UID, Folder: e.Folder}
}

// EmailSummary represents a summary of an email (for search and thread listings)
type EmailSummary struct {
	ID          int64     `json:"id"`
	ServerName  string    `json:"server_name"`
	Folder      string    `json:"folder"`
	Subject     string    `json:"subject"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	Date        time.Time `json:"date"`
	ThreadID    string    `json:"thread_id"`
	ThreadCount int       `json:"thread_count,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
}

// FolderInfo is a remote folder as reported by the server.
type FolderInfo struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes,omitempty"`
}

// Folder represents a synced folder and its bookkeeping
type Folder struct {
	ID           int64      `json:"id"`
	ServerID     int64      `json:"server_id"`
	Name         string     `json:"name"`
	MessageCount int        `json:"message_count"`
	LastSynced   *time.Time `json:"last_synced,omitempty"`
}

// Message is a message as it came off the wire, before any decoding.
type Message struct {
	UID          uint32
	InternalDate time.Time
	Body         []byte
}

// RawMessage is a parsed message: envelope fields, bodies and headers.
// Header names are lower-cased.
type RawMessage struct {
	UID        uint32
	Subject    string
	Sender     string
	Recipients []string
	Date       time.Time
	Text       string
	HTML       string
	Headers    map[string]string
}

// Statistics summarizes the stored mail of one owner.
type Statistics struct {
	TotalEmails  int            `json:"total_emails"`
	TotalThreads int            `json:"total_threads"`
	Folders      map[string]int `json:"folders"`
}
