package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brandon/mailsync/pkg/types"
)

const snippetRunes = 200

type emailRow struct {
	ID         int64  `db:"id"`
	Owner      string `db:"owner"`
	ServerID   int64  `db:"server_id"`
	ServerName string `db:"server_name"`
	UID        uint32 `db:"uid"`
	Folder     string `db:"folder"`
	Subject    string `db:"subject"`
	Sender     string `db:"sender"`
	Recipient  string `db:"recipient"`
	Date       string `db:"date"`
	BodyText   string `db:"body_text"`
	BodyHTML   string `db:"body_html"`
	InReplyTo  string `db:"in_reply_to"`
	References string `db:"refs"`
	ThreadID   string `db:"thread_id"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

func (r *emailRow) toEmail() types.Email {
	e := types.Email{
		ID:         r.ID,
		Owner:      r.Owner,
		ServerID:   r.ServerID,
		ServerName: r.ServerName,
		UID:        r.UID,
		Folder:     r.Folder,
		Subject:    r.Subject,
		Sender:     r.Sender,
		Recipient:  r.Recipient,
		BodyText:   r.BodyText,
		BodyHTML:   r.BodyHTML,
		InReplyTo:  r.InReplyTo,
		References: r.References,
		ThreadID:   r.ThreadID,
	}
	e.Date, _ = parseTime(r.Date)
	e.CreatedAt, _ = parseTime(r.CreatedAt)
	e.UpdatedAt, _ = parseTime(r.UpdatedAt)
	return e
}

const emailSelect = `
	SELECT e.id, e.owner, e.server_id, s.name AS server_name, e.uid, e.folder,
		e.subject, e.sender, e.recipient, e.date, e.body_text, e.body_html,
		e.in_reply_to, e.refs, e.thread_id, e.created_at, e.updated_at
	FROM emails e
	JOIN servers s ON e.server_id = s.id
`

// GetEmail retrieves an email by its natural key
func (s *Store) GetEmail(ctx context.Context, key types.EmailKey) (*types.Email, error) {
	query := emailSelect + `WHERE e.owner = ? AND e.server_id = ? AND e.uid = ? AND e.folder = ?`

	var row emailRow
	err := s.db.GetContext(ctx, &row, query, key.Owner, key.ServerID, key.UID, key.Folder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	email := row.toEmail()
	return &email, nil
}

// ListThread returns the emails of one thread, oldest first
func (s *Store) ListThread(ctx context.Context, owner, threadID string) ([]types.Email, error) {
	query := emailSelect + `WHERE e.owner = ? AND e.thread_id = ? ORDER BY e.date, e.id`

	var rows []emailRow
	if err := s.db.SelectContext(ctx, &rows, query, owner, threadID); err != nil {
		return nil, fmt.Errorf("failed to list thread: %w", err)
	}

	emails := make([]types.Email, 0, len(rows))
	for i := range rows {
		emails = append(emails, rows[i].toEmail())
	}
	return emails, nil
}

type summaryRow struct {
	ID          int64  `db:"id"`
	ServerName  string `db:"server_name"`
	Folder      string `db:"folder"`
	Subject     string `db:"subject"`
	Sender      string `db:"sender"`
	Recipient   string `db:"recipient"`
	Date        string `db:"date"`
	ThreadID    string `db:"thread_id"`
	ThreadCount int    `db:"thread_count"`
	BodyText    string `db:"body_text"`
}

func (r *summaryRow) toSummary() types.EmailSummary {
	sum := types.EmailSummary{
		ID:          r.ID,
		ServerName:  r.ServerName,
		Folder:      r.Folder,
		Subject:     r.Subject,
		Sender:      r.Sender,
		Recipient:   r.Recipient,
		ThreadID:    r.ThreadID,
		ThreadCount: r.ThreadCount,
		Snippet:     snippet(r.BodyText),
	}
	sum.Date, _ = parseTime(r.Date)
	return sum
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	i := 0
	for pos := range body {
		if i == snippetRunes {
			return body[:pos] + "..."
		}
		i++
	}
	return body
}

// ListThreads returns the first email of every thread of owner with the
// thread's size, most recently started thread first.
func (s *Store) ListThreads(ctx context.Context, owner string, limit int) ([]types.EmailSummary, error) {
	query := `
		SELECT id, server_name, folder, subject, sender, recipient, date, thread_id, thread_count, body_text
		FROM (
			SELECT e.id, s.name AS server_name, e.folder, e.subject, e.sender, e.recipient,
				e.date, e.thread_id, e.body_text,
				COUNT(*) OVER (PARTITION BY e.thread_id) AS thread_count,
				ROW_NUMBER() OVER (PARTITION BY e.thread_id ORDER BY e.date, e.id) AS rn
			FROM emails e
			JOIN servers s ON e.server_id = s.id
			WHERE e.owner = ?
		)
		WHERE rn = 1
		ORDER BY date DESC
		LIMIT ?
	`

	var rows []summaryRow
	if err := s.db.SelectContext(ctx, &rows, query, owner, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	threads := make([]types.EmailSummary, 0, len(rows))
	for i := range rows {
		threads = append(threads, rows[i].toSummary())
	}
	return threads, nil
}

type folderRow struct {
	ID           int64          `db:"id"`
	ServerID     int64          `db:"server_id"`
	Name         string         `db:"name"`
	MessageCount int            `db:"message_count"`
	LastSynced   sql.NullString `db:"last_synced"`
}

// ListFolders lists the synced folders of every server of owner
func (s *Store) ListFolders(ctx context.Context, owner string) ([]types.Folder, error) {
	query := `
		SELECT f.id, f.server_id, f.name, f.message_count, f.last_synced
		FROM folders f
		JOIN servers s ON f.server_id = s.id
		WHERE s.owner = ?
		ORDER BY s.name, f.name
	`

	var rows []folderRow
	if err := s.db.SelectContext(ctx, &rows, query, owner); err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}

	folders := make([]types.Folder, 0, len(rows))
	for _, r := range rows {
		folder := types.Folder{
			ID:           r.ID,
			ServerID:     r.ServerID,
			Name:         r.Name,
			MessageCount: r.MessageCount,
		}
		if r.LastSynced.Valid {
			if t, err := parseTime(r.LastSynced.String); err == nil {
				folder.LastSynced = &t
			}
		}
		folders = append(folders, folder)
	}
	return folders, nil
}

// Statistics counts the stored emails and threads of owner
func (s *Store) Statistics(ctx context.Context, owner string) (*types.Statistics, error) {
	stats := &types.Statistics{Folders: make(map[string]int)}

	err := s.db.QueryRowxContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT thread_id) FROM emails WHERE owner = ?`, owner,
	).Scan(&stats.TotalEmails, &stats.TotalThreads)
	if err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}

	var perFolder []struct {
		Folder string `db:"folder"`
		Count  int    `db:"count"`
	}
	err = s.db.SelectContext(ctx, &perFolder,
		`SELECT folder, COUNT(*) AS count FROM emails WHERE owner = ? GROUP BY folder`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to count folders: %w", err)
	}
	for _, f := range perFolder {
		stats.Folders[f.Folder] = f.Count
	}

	return stats, nil
}

// SearchOptions contains search parameters. Query matches subject, sender,
// recipient and body through the full-text index. Server and Folder match
// exactly, Sender and Subject are substring matches and the date bounds are
// inclusive.
type SearchOptions struct {
	Owner    string
	Query    string
	Server   string
	Folder   string
	Sender   string
	Subject  string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

// Search performs a search on stored emails, newest first
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]types.EmailSummary, error) {
	conditions := []string{"e.owner = ?"}
	args := []interface{}{opts.Owner}

	if opts.Server != "" {
		conditions = append(conditions, "s.name = ?")
		args = append(args, opts.Server)
	}

	if opts.Folder != "" {
		conditions = append(conditions, "e.folder = ?")
		args = append(args, opts.Folder)
	}

	if opts.Sender != "" {
		conditions = append(conditions, "e.sender LIKE ?")
		args = append(args, "%"+opts.Sender+"%")
	}

	if opts.Subject != "" {
		conditions = append(conditions, "e.subject LIKE ?")
		args = append(args, "%"+opts.Subject+"%")
	}

	if opts.DateFrom != nil {
		conditions = append(conditions, "e.date >= ?")
		args = append(args, formatTime(*opts.DateFrom))
	}

	if opts.DateTo != nil {
		conditions = append(conditions, "e.date <= ?")
		args = append(args, formatTime(*opts.DateTo))
	}

	if q := strings.TrimSpace(opts.Query); q != "" {
		conditions = append(conditions, "e.id IN (SELECT rowid FROM emails_fts WHERE emails_fts MATCH ?)")
		args = append(args, ftsPhrase(q))
	}

	query := fmt.Sprintf(`
		SELECT e.id, s.name AS server_name, e.folder, e.subject, e.sender, e.recipient,
			e.date, e.thread_id, 0 AS thread_count, e.body_text
		FROM emails e
		JOIN servers s ON e.server_id = s.id
		WHERE %s
		ORDER BY e.date DESC
		LIMIT ?
	`, strings.Join(conditions, " AND "))
	args = append(args, clampLimit(opts.Limit))

	var rows []summaryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}

	results := make([]types.EmailSummary, 0, len(rows))
	for i := range rows {
		results = append(results, rows[i].toSummary())
	}
	return results, nil
}

// ftsPhrase quotes q as a single FTS5 phrase so operators in user input are
// matched literally.
func ftsPhrase(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
