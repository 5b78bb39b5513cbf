package syncerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		reason ConnectionReason
		want   string
	}{
		{ReasonTLS, "SSL connection failed: boom"},
		{ReasonTimeout, "Connection timed out"},
		{ReasonResolve, "Could not resolve hostname: imap.example.com"},
		{ReasonAuth, "Login failed: boom"},
		{ReasonTransport, "Connection failed: boom"},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			err := &ConnectionError{Reason: tt.reason, Host: "imap.example.com", Err: cause}
			assert.Equal(t, tt.want, err.Error())
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	conn := fmt.Errorf("sync server: %w", &ConnectionError{Reason: ReasonTimeout})
	folder := fmt.Errorf("sync server: %w", &FolderError{Op: OpList, Err: errors.New("x")})
	cfg := fmt.Errorf("sync server: %w", &ConfigError{Field: "limit_value", Reason: "required"})

	assert.True(t, IsConnection(conn))
	assert.False(t, IsConnection(folder))
	assert.True(t, IsFolder(folder))
	assert.True(t, IsConfig(cfg))
	assert.False(t, IsConfig(conn))
}

func TestFolderErrorMessage(t *testing.T) {
	err := &FolderError{Folder: "INBOX", Op: OpSelect, Err: errors.New("no such mailbox")}
	assert.Equal(t, "failed to select folder INBOX: no such mailbox", err.Error())

	err = &FolderError{Op: OpList, Err: errors.New("closed")}
	assert.Equal(t, "failed to list folders: closed", err.Error())
}
