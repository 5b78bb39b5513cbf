package syncer

import (
	"context"
	"time"

	"github.com/brandon/mailsync/internal/syncerr"
	"github.com/brandon/mailsync/pkg/types"
)

// DefaultBatchSize is the number of messages fetched per FETCH command.
const DefaultBatchSize = 50

// Fetcher downloads the messages of the selected folder that match a
// constraint.
type Fetcher struct {
	BatchSize int
}

// Fetch searches the selected folder and streams matching messages to fn in
// batches. For FetchLastN only the last Limit UIDs in search order are
// fetched. Search and fetch failures are returned as *syncerr.FolderError;
// a done ctx is returned as is.
func (f *Fetcher) Fetch(ctx context.Context, session Session, folder string, c FetchConstraint, fn func(*types.Message) error) error {
	var since *time.Time
	if c.Kind == FetchSince {
		since = &c.Since
	}

	uids, err := session.SearchUIDs(ctx, since)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &syncerr.FolderError{Folder: folder, Op: syncerr.OpFetch, Err: err}
	}

	if c.Kind == FetchLastN && len(uids) > c.Limit {
		uids = uids[len(uids)-c.Limit:]
	}

	batch := f.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	for start := 0; start < len(uids); start += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batch, len(uids))
		if err := session.FetchMessages(ctx, uids[start:end], fn); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &syncerr.FolderError{Folder: folder, Op: syncerr.OpFetch, Err: err}
		}
	}
	return nil
}
