package email

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/syncerr"
	"github.com/brandon/mailsync/pkg/types"
)

// IMAPDialer opens authenticated IMAP sessions. Timeout bounds the dial and
// every IMAP command issued on the resulting session.
type IMAPDialer struct {
	Timeout time.Duration
	Logger  *logrus.Logger
}

// NewIMAPDialer creates a dialer with the given network timeout
func NewIMAPDialer(timeout time.Duration, logger *logrus.Logger) *IMAPDialer {
	return &IMAPDialer{Timeout: timeout, Logger: logger}
}

// IMAPClient wraps one logged-in IMAP connection
type IMAPClient struct {
	server *config.ServerConfig
	client *client.Client
	logger *logrus.Logger
	stop   func() bool
}

// Dial connects to srv and logs in. The connection is closed when ctx is
// done, aborting any command in flight. Failures are returned as
// *syncerr.ConnectionError, except that cancelling ctx returns ctx.Err().
func (d *IMAPDialer) Dial(ctx context.Context, srv *config.ServerConfig) (*IMAPClient, error) {
	netDialer := &net.Dialer{Timeout: d.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if srv.UseTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: netDialer,
			Config: &tls.Config{
				ServerName: srv.Host,
				MinVersion: tls.VersionTLS12,
			},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", srv.Addr())
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", srv.Addr())
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, classifyConnectError(srv.Host, err)
	}

	// The greeting is read inside client.New, before Timeout can be set.
	if d.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.Timeout))
	}
	cl, err := client.New(conn)
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, classifyConnectError(srv.Host, err)
	}
	_ = conn.SetDeadline(time.Time{})
	cl.Timeout = d.Timeout
	cl.ErrorLog = d.logger().WithFields(logrus.Fields{
		"owner":  srv.Owner,
		"server": srv.Name,
	})

	stop := context.AfterFunc(ctx, func() {
		conn.Close() //nolint:errcheck
	})

	if err := cl.Login(srv.Username, srv.Password); err != nil {
		stop()
		conn.Close() //nolint:errcheck
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if isTimeout(err) || ctx.Err() != nil {
			return nil, &syncerr.ConnectionError{Reason: syncerr.ReasonTimeout, Host: srv.Host, Err: err}
		}
		return nil, &syncerr.ConnectionError{Reason: syncerr.ReasonAuth, Host: srv.Host, Err: err}
	}

	d.logger().WithFields(logrus.Fields{
		"owner":  srv.Owner,
		"server": srv.Name,
	}).Debug("Connected to IMAP server")

	return &IMAPClient{
		server: srv,
		client: cl,
		logger: d.logger(),
		stop:   stop,
	}, nil
}

func (d *IMAPDialer) logger() *logrus.Logger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

// classifyConnectError maps a dial or greeting failure to a ConnectionError
func classifyConnectError(host string, err error) error {
	var (
		dnsErr     *net.DNSError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		verifyErr  *tls.CertificateVerificationError
		authority  x509.UnknownAuthorityError
		hostname   x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)

	reason := syncerr.ReasonTransport
	switch {
	case errors.As(err, &dnsErr):
		reason = syncerr.ReasonResolve
	case errors.As(err, &recordErr), errors.As(err, &alertErr), errors.As(err, &verifyErr),
		errors.As(err, &authority), errors.As(err, &hostname), errors.As(err, &invalidErr):
		reason = syncerr.ReasonTLS
	case isTimeout(err):
		reason = syncerr.ReasonTimeout
	}
	return &syncerr.ConnectionError{Reason: reason, Host: host, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Logout ends the session and releases the connection
func (c *IMAPClient) Logout() error {
	defer c.stop()
	if err := c.client.Logout(); err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		return err
	}
	return nil
}

// ListFolders lists all mailboxes/folders
func (c *IMAPClient) ListFolders(ctx context.Context) ([]types.FolderInfo, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.client.List("", "*", mailboxes)
	}()

	var folders []types.FolderInfo
	for m := range mailboxes {
		folders = append(folders, types.FolderInfo{
			Name:       m.Name,
			Attributes: m.Attributes,
		})
	}

	if err := <-done; err != nil {
		return nil, err
	}
	return folders, ctx.Err()
}

// SelectFolder opens a folder read-only and returns its message count
func (c *IMAPClient) SelectFolder(ctx context.Context, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	mbox, err := c.client.Select(name, true)
	if err != nil {
		return 0, err
	}
	return int(mbox.Messages), nil
}

// SearchUIDs returns the UIDs in the selected folder, restricted to
// messages on or after since when it is set. Empty criteria search ALL.
func (c *IMAPClient) SearchUIDs(ctx context.Context, since *time.Time) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := imap.NewSearchCriteria()
	if since != nil {
		criteria.Since = *since
	}
	return c.client.UidSearch(criteria)
}

// FetchMessages downloads the full bodies of uids, handing each message to
// fn as it arrives. An error from fn stops delivery and is returned once the
// fetch has drained.
func (c *IMAPClient) FetchMessages(ctx context.Context, uids []uint32, fn func(*types.Message) error) error {
	if len(uids) == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var fnErr error
	for msg := range messages {
		if fnErr != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			fnErr = err
			continue
		}

		m := &types.Message{UID: msg.Uid, InternalDate: msg.InternalDate}
		if body := msg.GetBody(section); body != nil {
			raw, err := io.ReadAll(body)
			if err != nil {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"server": c.server.Name,
					"uid":    msg.Uid,
				}).Warn("Failed to read message body")
			}
			m.Body = raw
		}
		fnErr = fn(m)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}
	return fnErr
}
