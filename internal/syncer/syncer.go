// Package syncer pulls mail from IMAP servers into the store. A run fans
// out over servers; each server syncs its folders one after another on a
// single connection and each folder streams its messages one at a time.
package syncer

import (
	"context"
	"time"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/pkg/types"
)

// Store is the persistence the engine needs.
type Store interface {
	ListServers(ctx context.Context, scope types.Scope) ([]config.ServerConfig, error)
	UpsertEmail(ctx context.Context, email *types.Email) (created bool, err error)
	SetLastSync(ctx context.Context, serverID int64, t time.Time) error
	RecordFolderSync(ctx context.Context, serverID int64, folder string, count int, t time.Time) error
}

// Session is one authenticated connection to a mail server.
type Session interface {
	ListFolders(ctx context.Context) ([]types.FolderInfo, error)
	// SelectFolder opens a folder and returns its message count.
	SelectFolder(ctx context.Context, name string) (int, error)
	// SearchUIDs returns the UIDs of the selected folder in server order,
	// limited to messages since the given time when it is non-nil.
	SearchUIDs(ctx context.Context, since *time.Time) ([]uint32, error)
	FetchMessages(ctx context.Context, uids []uint32, fn func(*types.Message) error) error
	Logout() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, srv *config.ServerConfig) (Session, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, srv *config.ServerConfig) (Session, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, srv *config.ServerConfig) (Session, error) {
	return f(ctx, srv)
}
