package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/email"
	"github.com/brandon/mailsync/internal/normalize"
	"github.com/brandon/mailsync/internal/syncerr"
	"github.com/brandon/mailsync/internal/thread"
	"github.com/brandon/mailsync/pkg/types"
)

// Stored field defaults for messages that lack them.
const (
	DefaultSubject = "(No Subject)"
	UnknownAddress = "unknown"
)

// FolderSyncer syncs one folder of an open session into the store.
type FolderSyncer struct {
	store   Store
	fetcher *Fetcher
	now     func() time.Time
}

// NewFolderSyncer creates a folder syncer
func NewFolderSyncer(store Store, fetcher *Fetcher) *FolderSyncer {
	return &FolderSyncer{store: store, fetcher: fetcher, now: time.Now}
}

// Sync selects folder, fetches the messages matching c and upserts each of
// them. A message that fails is logged, counted in Failed and skipped. The
// returned error is non-nil when the folder itself could not be synced, in
// which case stats.Error carries its message.
func (f *FolderSyncer) Sync(ctx context.Context, log *logrus.Entry, session Session, srv *config.ServerConfig, folder string, c FetchConstraint) (types.FolderStats, error) {
	stats := types.FolderStats{Folder: folder}
	log = log.WithField("folder", folder)

	count, err := session.SelectFolder(ctx, folder)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else {
			err = &syncerr.FolderError{Folder: folder, Op: syncerr.OpSelect, Err: err}
		}
		stats.Error = err.Error()
		return stats, err
	}

	err = f.fetcher.Fetch(ctx, session, folder, c, func(msg *types.Message) error {
		stats.Fetched++

		e, err := f.buildEmail(srv, folder, msg)
		if err == nil {
			var created bool
			created, err = f.store.UpsertEmail(ctx, e)
			if err != nil {
				err = &syncerr.MessageError{Folder: folder, UID: msg.UID, Stage: syncerr.StageStore, Err: err}
			} else if created {
				stats.Created++
			} else {
				stats.Updated++
			}
		}
		if err != nil {
			stats.Failed++
			log.WithError(err).WithField("uid", msg.UID).Warn("Failed to process message")
		}

		return ctx.Err()
	})
	if err != nil {
		stats.Error = err.Error()
		return stats, err
	}

	if err := f.store.RecordFolderSync(ctx, srv.ID, folder, count, f.now()); err != nil {
		log.WithError(err).Warn("Failed to record folder sync")
	}

	log.WithFields(logrus.Fields{
		"fetched": stats.Fetched,
		"created": stats.Created,
		"updated": stats.Updated,
		"failed":  stats.Failed,
	}).Info("Synced folder")

	return stats, nil
}

// buildEmail turns a fetched message into a stored email. A panic in any
// stage is reported as a MessageError for that stage.
func (f *FolderSyncer) buildEmail(srv *config.ServerConfig, folder string, msg *types.Message) (e *types.Email, err error) {
	stage := syncerr.StageParse
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = &syncerr.MessageError{Folder: folder, UID: msg.UID, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	raw, err := email.ParseMessage(msg)
	if err != nil {
		return nil, &syncerr.MessageError{Folder: folder, UID: msg.UID, Stage: stage, Err: err}
	}

	stage = syncerr.StageThread
	references := thread.ParseReferences(raw.Headers["references"])
	inReplyTo := strings.TrimSpace(raw.Headers["in-reply-to"])
	threadID := thread.Resolve(references, inReplyTo, raw.Subject, raw.Text)

	stage = syncerr.StageNormalize
	e = &types.Email{
		Owner:      srv.Owner,
		ServerID:   srv.ID,
		UID:        msg.UID,
		Folder:     folder,
		Subject:    normalize.String(raw.Subject),
		Sender:     normalize.String(raw.Sender),
		Recipient:  normalize.String(strings.Join(raw.Recipients, ", ")),
		BodyText:   normalize.String(raw.Text),
		BodyHTML:   normalize.String(raw.HTML),
		InReplyTo:  inReplyTo,
		References: strings.Join(references, " "),
		ThreadID:   threadID,
		Date:       raw.Date,
	}

	if e.Subject == "" {
		e.Subject = DefaultSubject
	}
	if e.Sender == "" {
		e.Sender = UnknownAddress
	}
	if e.Recipient == "" {
		e.Recipient = UnknownAddress
	}
	if e.Date.IsZero() {
		e.Date = msg.InternalDate
	}
	if e.Date.IsZero() {
		e.Date = f.now()
	}

	return e, nil
}
