package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/pkg/types"
)

var (
	// ErrServerNotFound is returned when a named server does not exist.
	ErrServerNotFound = errors.New("server not found")
	// ErrEmailNotFound is returned when no email matches a key or id.
	ErrEmailNotFound = errors.New("email not found")
)

type serverRow struct {
	ID           int64          `db:"id"`
	Owner        string         `db:"owner"`
	Name         string         `db:"name"`
	Host         string         `db:"host"`
	Port         int            `db:"port"`
	Username     string         `db:"username"`
	Password     string         `db:"password"`
	UseTLS       bool           `db:"use_tls"`
	LimitKind    string         `db:"limit_kind"`
	LimitValue   sql.NullInt64  `db:"limit_value"`
	Folders      string         `db:"folders"`
	ExcludeTrash bool           `db:"exclude_trash"`
	LastSync     sql.NullString `db:"last_sync"`
}

func (r *serverRow) toConfig() config.ServerConfig {
	srv := config.ServerConfig{
		ID:           r.ID,
		Owner:        r.Owner,
		Name:         r.Name,
		Host:         r.Host,
		Port:         r.Port,
		Username:     r.Username,
		Password:     r.Password,
		UseTLS:       r.UseTLS,
		Policy:       config.SyncPolicy{Kind: config.LimitKind(r.LimitKind)},
		Folders:      config.ParseFolderList(r.Folders),
		ExcludeTrash: r.ExcludeTrash,
	}
	if r.LimitValue.Valid {
		v := int(r.LimitValue.Int64)
		srv.Policy.Value = &v
	}
	if r.LastSync.Valid {
		if t, err := parseTime(r.LastSync.String); err == nil {
			srv.LastSync = &t
		}
	}
	return srv
}

const serverColumns = `id, owner, name, host, port, username, password, use_tls,
	limit_kind, limit_value, folders, exclude_trash, last_sync`

// UpsertServer inserts or updates a server by (owner, name) and sets srv.ID.
// The last sync time is never overwritten here.
func (s *Store) UpsertServer(ctx context.Context, srv *config.ServerConfig) (int64, error) {
	query := `
		INSERT INTO servers (owner, name, host, port, username, password, use_tls,
			limit_kind, limit_value, folders, exclude_trash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			username = excluded.username,
			password = excluded.password,
			use_tls = excluded.use_tls,
			limit_kind = excluded.limit_kind,
			limit_value = excluded.limit_value,
			folders = excluded.folders,
			exclude_trash = excluded.exclude_trash,
			updated_at = excluded.updated_at
		RETURNING id
	`
	var limitValue sql.NullInt64
	if srv.Policy.Value != nil {
		limitValue = sql.NullInt64{Int64: int64(*srv.Policy.Value), Valid: true}
	}
	now := formatTime(s.now())

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		srv.Owner, srv.Name, srv.Host, srv.Port, srv.Username, srv.Password, srv.UseTLS,
		string(srv.Policy.Kind), limitValue, strings.Join(srv.Folders, ","), srv.ExcludeTrash,
		now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert server: %w", err)
	}

	srv.ID = id
	return id, nil
}

// ListServers returns the servers covered by scope ordered by owner and
// name. A scope naming one server that does not exist yields
// ErrServerNotFound.
func (s *Store) ListServers(ctx context.Context, scope types.Scope) ([]config.ServerConfig, error) {
	var conditions []string
	var args []interface{}

	if scope.Owner != "" {
		conditions = append(conditions, "owner = ?")
		args = append(args, scope.Owner)
	}
	if scope.Server != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, scope.Server)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM servers %s ORDER BY owner, name`, serverColumns, whereClause)

	var rows []serverRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	if scope.Single() && len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, scope.Server)
	}

	servers := make([]config.ServerConfig, 0, len(rows))
	for i := range rows {
		servers = append(servers, rows[i].toConfig())
	}
	return servers, nil
}

// GetServer returns one server of owner by name
func (s *Store) GetServer(ctx context.Context, owner, name string) (*config.ServerConfig, error) {
	servers, err := s.ListServers(ctx, types.Scope{Owner: owner, Server: name})
	if err != nil {
		return nil, err
	}
	return &servers[0], nil
}

// SetLastSync records the completion time of a successful sync
func (s *Store) SetLastSync(ctx context.Context, serverID int64, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE servers SET last_sync = ?, updated_at = ? WHERE id = ?`,
		formatTime(t), formatTime(s.now()), serverID)
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %d", ErrServerNotFound, serverID)
	}
	return nil
}

// RecordFolderSync upserts the bookkeeping row of a synced folder
func (s *Store) RecordFolderSync(ctx context.Context, serverID int64, folder string, count int, t time.Time) error {
	query := `
		INSERT INTO folders (server_id, name, message_count, last_synced)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(server_id, name) DO UPDATE SET
			message_count = excluded.message_count,
			last_synced = excluded.last_synced
	`
	if _, err := s.db.ExecContext(ctx, query, serverID, folder, count, formatTime(t)); err != nil {
		return fmt.Errorf("failed to upsert folder: %w", err)
	}
	return nil
}

// UpsertEmail inserts or overwrites an email by (owner, server_id, uid,
// folder). created is true when no row existed before. email.ID is set.
func (s *Store) UpsertEmail(ctx context.Context, email *types.Email) (bool, error) {
	query := `
		INSERT INTO emails (owner, server_id, uid, folder, subject, sender, recipient, date,
			body_text, body_html, in_reply_to, refs, thread_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, server_id, uid, folder) DO UPDATE SET
			subject = excluded.subject,
			sender = excluded.sender,
			recipient = excluded.recipient,
			date = excluded.date,
			body_text = excluded.body_text,
			body_html = excluded.body_html,
			in_reply_to = excluded.in_reply_to,
			refs = excluded.refs,
			thread_id = excluded.thread_id,
			revision = emails.revision + 1,
			updated_at = excluded.updated_at
		RETURNING id, revision
	`
	now := formatTime(s.now())

	var (
		id       int64
		revision int
	)
	err := s.db.QueryRowxContext(ctx, query,
		email.Owner, email.ServerID, email.UID, email.Folder,
		email.Subject, email.Sender, email.Recipient, formatTime(email.Date),
		email.BodyText, email.BodyHTML, email.InReplyTo, email.References, email.ThreadID,
		now, now,
	).Scan(&id, &revision)
	if err != nil {
		return false, fmt.Errorf("failed to upsert email: %w", err)
	}

	email.ID = id
	created := revision == 1

	s.logger.WithFields(logrus.Fields{
		"owner":   email.Owner,
		"folder":  email.Folder,
		"uid":     email.UID,
		"created": created,
	}).Debug("Stored email")

	return created, nil
}
