package email

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/syncerr"
	"github.com/brandon/mailsync/pkg/types"
)

// startServer runs an in-memory IMAP server. Its single user is
// username/password with one message in INBOX.
func startServer(t *testing.T) *config.ServerConfig {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.New(memory.New())
	s.AllowInsecureAuth = true
	go s.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { s.Close() })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return &config.ServerConfig{
		Owner:    "alice",
		Name:     "memory",
		Host:     host,
		Port:     p,
		Username: "username",
		Password: "password",
		UseTLS:   false,
	}
}

func newDialer() *IMAPDialer {
	logger, _ := test.NewNullLogger()
	return NewIMAPDialer(5*time.Second, logger)
}

func TestIMAPClientSession(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	c, err := newDialer().Dial(ctx, srv)
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Logout()) }()

	errorLog, ok := c.client.ErrorLog.(*logrus.Entry)
	require.True(t, ok, "client errors should go through logrus")
	assert.Equal(t, "memory", errorLog.Data["server"])

	folders, err := c.ListFolders(ctx)
	require.NoError(t, err)
	var names []string
	for _, f := range folders {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "INBOX")

	count, err := c.SelectFolder(ctx, "INBOX")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	uids, err := c.SearchUIDs(ctx, nil)
	require.NoError(t, err)
	require.Len(t, uids, 1)

	future := time.Now().Add(72 * time.Hour)
	none, err := c.SearchUIDs(ctx, &future)
	require.NoError(t, err)
	assert.Empty(t, none)

	var got []*types.Message
	err = c.FetchMessages(ctx, uids, func(m *types.Message) error {
		got = append(got, m)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uids[0], got[0].UID)
	assert.NotEmpty(t, got[0].Body)

	raw, err := ParseMessage(got[0])
	require.NoError(t, err)
	assert.Equal(t, "A little message, just for you", raw.Subject)
}

func TestIMAPClientFetchStopsOnCallbackError(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	c, err := newDialer().Dial(ctx, srv)
	require.NoError(t, err)
	defer c.Logout() //nolint:errcheck

	_, err = c.SelectFolder(ctx, "INBOX")
	require.NoError(t, err)
	uids, err := c.SearchUIDs(ctx, nil)
	require.NoError(t, err)

	stop := errors.New("stop")
	err = c.FetchMessages(ctx, uids, func(*types.Message) error { return stop })
	assert.ErrorIs(t, err, stop)

	// The session is still usable after a drained fetch.
	_, err = c.SelectFolder(ctx, "INBOX")
	assert.NoError(t, err)
}

func TestDialLoginFailure(t *testing.T) {
	srv := startServer(t)
	srv.Password = "wrong"

	_, err := newDialer().Dial(context.Background(), srv)

	var connErr *syncerr.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, syncerr.ReasonAuth, connErr.Reason)
}

func TestDialCancelled(t *testing.T) {
	srv := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDialer().Dial(ctx, srv)

	assert.ErrorIs(t, err, context.Canceled)
	var connErr *syncerr.ConnectionError
	assert.False(t, errors.As(err, &connErr))
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	srv := &config.ServerConfig{Name: "gone", Host: "127.0.0.1", Port: addr.Port, Username: "u"}
	_, err = newDialer().Dial(context.Background(), srv)

	var connErr *syncerr.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, syncerr.ReasonTransport, connErr.Reason)
}

func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want syncerr.ConnectionReason
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, syncerr.ReasonResolve},
		{"tls record", tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}, syncerr.ReasonTLS},
		{"tls alert", tls.AlertError(40), syncerr.ReasonTLS},
		{"timeout", &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}, syncerr.ReasonTimeout},
		{"deadline", context.DeadlineExceeded, syncerr.ReasonTimeout},
		{"other", errors.New("connection reset by peer"), syncerr.ReasonTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyConnectError("imap.example.com", tt.err)

			var connErr *syncerr.ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, tt.want, connErr.Reason)
			assert.Equal(t, "imap.example.com", connErr.Host)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
