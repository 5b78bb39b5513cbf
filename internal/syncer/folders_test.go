package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/syncerr"
	"github.com/brandon/mailsync/pkg/types"
)

func folderInfos(names ...string) []types.FolderInfo {
	out := make([]types.FolderInfo, 0, len(names))
	for _, n := range names {
		out = append(out, types.FolderInfo{Name: n})
	}
	return out
}

func TestIsTrash(t *testing.T) {
	for _, name := range []string{"Trash", "INBOX.Trash", "[Gmail]/Trash", "Kosz", "Spam", "Junk E-mail", "Deleted Trash Items"} {
		assert.True(t, IsTrash(name), name)
	}
	for _, name := range []string{"INBOX", "Sent", "Archive", "[Gmail]/All Mail"} {
		assert.False(t, IsTrash(name), name)
	}
}

func TestSelectFolders(t *testing.T) {
	remote := folderInfos("INBOX", "INBOX.Trash", "Sent", "Spam", "Archive")

	srv := &config.ServerConfig{ExcludeTrash: true}
	assert.Equal(t, []string{"INBOX", "Sent", "Archive"}, SelectFolders(remote, srv))

	srv = &config.ServerConfig{ExcludeTrash: false}
	assert.Equal(t, []string{"INBOX", "INBOX.Trash", "Sent", "Spam", "Archive"}, SelectFolders(remote, srv))

	// The allow-list keeps remote order and ignores names the server lacks.
	srv = &config.ServerConfig{ExcludeTrash: true, Folders: []string{"Archive", "Missing", "INBOX", "Spam"}}
	assert.Equal(t, []string{"INBOX", "Archive"}, SelectFolders(remote, srv))

	// Allow-list matching is exact.
	srv = &config.ServerConfig{Folders: []string{"inbox"}}
	assert.Empty(t, SelectFolders(remote, srv))
}

func TestEnumerateFoldersListFailure(t *testing.T) {
	session := newFakeSession()
	session.listErr = errors.New("connection reset")

	_, err := EnumerateFolders(context.Background(), session, &config.ServerConfig{})

	var folderErr *syncerr.FolderError
	require.ErrorAs(t, err, &folderErr)
	assert.Equal(t, syncerr.OpList, folderErr.Op)
}
