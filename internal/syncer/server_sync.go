package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/syncerr"
	"github.com/brandon/mailsync/pkg/types"
)

// ServerSyncer syncs every selected folder of one server over a single
// connection.
type ServerSyncer struct {
	store   Store
	dialer  Dialer
	folders *FolderSyncer
	now     func() time.Time
}

// NewServerSyncer creates a server syncer
func NewServerSyncer(store Store, dialer Dialer, folders *FolderSyncer) *ServerSyncer {
	return &ServerSyncer{store: store, dialer: dialer, folders: folders, now: time.Now}
}

// Sync runs one server's sync and reports the outcome. Failures of single
// folders are recorded in the result's folder stats and do not fail the
// server. The last sync time is stored only when the server succeeds.
func (s *ServerSyncer) Sync(ctx context.Context, log *logrus.Entry, srv *config.ServerConfig) types.SyncResult {
	log = log.WithFields(logrus.Fields{
		"owner":  srv.Owner,
		"server": srv.Name,
	})
	result := types.SyncResult{
		ServerID: srv.ID,
		Owner:    srv.Owner,
		Server:   srv.Name,
	}

	fail := func(err error, msg string) types.SyncResult {
		log.WithError(err).Error(msg)
		result.Status = types.StatusError
		result.Message = err.Error()
		result.Err = err
		return result
	}

	constraint, err := ResolvePolicy(srv.Policy, s.now())
	if err != nil {
		return fail(err, "Invalid sync policy")
	}

	session, err := s.dialer.Dial(ctx, srv)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fail(err, "Sync cancelled")
		}
		return fail(err, "Failed to connect to server")
	}
	defer func() {
		if err := session.Logout(); err != nil {
			log.WithError(&syncerr.CleanupError{Err: err}).Warn("Failed to disconnect from server")
		}
	}()

	names, err := EnumerateFolders(ctx, session, srv)
	if err != nil {
		return fail(err, "Failed to enumerate folders")
	}

	log.WithFields(logrus.Fields{
		"folders":    len(names),
		"constraint": constraint.Kind.String(),
	}).Debug("Syncing server")

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return fail(err, "Sync cancelled")
		}

		stats, err := s.folders.Sync(ctx, log, session, srv, name, constraint)
		result.Folders = append(result.Folders, stats)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr, "Sync cancelled")
			}
			log.WithError(err).WithField("folder", name).Warn("Failed to sync folder")
		}
	}

	completed := s.now()
	if err := s.store.SetLastSync(ctx, srv.ID, completed); err != nil {
		return fail(fmt.Errorf("failed to record last sync: %w", err), "Failed to record last sync")
	}

	result.Status = types.StatusSuccess
	result.Message = fmt.Sprintf("Successfully synced server: %s", srv.Name)
	result.CompletedAt = &completed

	log.WithField("folders", len(result.Folders)).Info("Synced server")
	return result
}
