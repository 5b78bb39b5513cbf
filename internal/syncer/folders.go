package syncer

import (
	"context"
	"strings"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/syncerr"
	"github.com/brandon/mailsync/pkg/types"
)

// Folder names containing any of these (case-insensitively) are treated as
// trash or spam.
var trashMarkers = []string{"trash", "[gmail]/trash", "kosz", "spam", "junk"}

// IsTrash reports whether a folder name looks like a trash or spam folder.
func IsTrash(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range trashMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SelectFolders picks the folders of remote to sync for srv, keeping the
// server's order. Configured names the server does not have are dropped.
func SelectFolders(remote []types.FolderInfo, srv *config.ServerConfig) []string {
	var allowed map[string]bool
	if len(srv.Folders) > 0 {
		allowed = make(map[string]bool, len(srv.Folders))
		for _, name := range srv.Folders {
			allowed[name] = true
		}
	}

	var names []string
	for _, f := range remote {
		if srv.ExcludeTrash && IsTrash(f.Name) {
			continue
		}
		if allowed != nil && !allowed[f.Name] {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// EnumerateFolders lists the session's folders and selects those to sync.
func EnumerateFolders(ctx context.Context, session Session, srv *config.ServerConfig) ([]string, error) {
	remote, err := session.ListFolders(ctx)
	if err != nil {
		return nil, &syncerr.FolderError{Op: syncerr.OpList, Err: err}
	}
	return SelectFolders(remote, srv), nil
}
