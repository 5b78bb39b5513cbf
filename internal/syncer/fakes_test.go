package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/store"
	"github.com/brandon/mailsync/pkg/types"
)

var baseDate = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeFolder struct {
	messages  []*types.Message
	selectErr error
	fetchErr  error
}

type fakeSession struct {
	mu        sync.Mutex
	order     []string
	folders   map[string]*fakeFolder
	listErr   error
	logoutErr error

	selected   string
	loggedOut  bool
	searches   []*time.Time
	fetchCalls [][]uint32
	onFetch    func()
}

func newFakeSession() *fakeSession {
	return &fakeSession{folders: make(map[string]*fakeFolder)}
}

func (s *fakeSession) addFolder(name string, msgs ...*types.Message) *fakeFolder {
	f := &fakeFolder{messages: msgs}
	s.order = append(s.order, name)
	s.folders[name] = f
	return f
}

func (s *fakeSession) ListFolders(ctx context.Context) ([]types.FolderInfo, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []types.FolderInfo
	for _, name := range s.order {
		out = append(out, types.FolderInfo{Name: name})
	}
	return out, nil
}

func (s *fakeSession) SelectFolder(ctx context.Context, name string) (int, error) {
	f, ok := s.folders[name]
	if !ok {
		return 0, fmt.Errorf("no such folder %s", name)
	}
	if f.selectErr != nil {
		return 0, f.selectErr
	}
	s.selected = name
	return len(f.messages), nil
}

func (s *fakeSession) SearchUIDs(ctx context.Context, since *time.Time) ([]uint32, error) {
	s.searches = append(s.searches, since)
	var uids []uint32
	for _, m := range s.folders[s.selected].messages {
		if since != nil && m.InternalDate.Before(*since) {
			continue
		}
		uids = append(uids, m.UID)
	}
	return uids, nil
}

func (s *fakeSession) FetchMessages(ctx context.Context, uids []uint32, fn func(*types.Message) error) error {
	f := s.folders[s.selected]
	if f.fetchErr != nil {
		return f.fetchErr
	}
	s.fetchCalls = append(s.fetchCalls, append([]uint32(nil), uids...))
	if s.onFetch != nil {
		s.onFetch()
	}
	for _, uid := range uids {
		for _, m := range f.messages {
			if m.UID != uid {
				continue
			}
			if err := fn(m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *fakeSession) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut = true
	return s.logoutErr
}

// fakeDialer hands out sessions by server name.
type fakeDialer struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	errs     map[string]error
	dials    []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{sessions: make(map[string]*fakeSession), errs: make(map[string]error)}
}

func (d *fakeDialer) Dial(ctx context.Context, srv *config.ServerConfig) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, srv.Name)
	if err, ok := d.errs[srv.Name]; ok {
		return nil, err
	}
	s, ok := d.sessions[srv.Name]
	if !ok {
		return nil, errors.New("unexpected dial")
	}
	return s, nil
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

type testEnv struct {
	store  *store.Store
	dialer *fakeDialer
	logger *logrus.Logger
	hook   *test.Hook
	orch   *Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	st, err := store.New(store.MemoryPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	dialer := newFakeDialer()
	return &testEnv{
		store:  st,
		dialer: dialer,
		logger: logger,
		hook:   hook,
		orch:   NewOrchestrator(st, dialer, logger, Options{Workers: 2, BatchSize: 2}),
	}
}

func (e *testEnv) addServer(t *testing.T, owner, name string, mutate ...func(*config.ServerConfig)) (*config.ServerConfig, *fakeSession) {
	t.Helper()
	srv := &config.ServerConfig{
		Owner:        owner,
		Name:         name,
		Host:         name + ".example.com",
		Port:         993,
		Username:     owner,
		UseTLS:       true,
		Policy:       config.SyncPolicy{Kind: config.LimitAll},
		ExcludeTrash: true,
	}
	for _, m := range mutate {
		m(srv)
	}
	_, err := e.store.UpsertServer(context.Background(), srv)
	require.NoError(t, err)

	session := newFakeSession()
	e.dialer.sessions[name] = session
	return srv, session
}

func hasEntry(hook *test.Hook, level logrus.Level, msg string) bool {
	for _, entry := range hook.AllEntries() {
		if entry.Level == level && entry.Message == msg {
			return true
		}
	}
	return false
}

// rfc822 builds a message from header lines and a body.
func rfc822(uid uint32, headers []string, body string) *types.Message {
	raw := strings.Join(headers, "\r\n") + "\r\n\r\n" + strings.ReplaceAll(body, "\n", "\r\n")
	return &types.Message{
		UID:          uid,
		InternalDate: baseDate.Add(time.Duration(uid) * time.Hour),
		Body:         []byte(raw),
	}
}

func simpleMessage(uid uint32, subject string) *types.Message {
	return rfc822(uid, []string{
		"From: alice@example.com",
		"To: bob@example.com",
		"Subject: " + subject,
		"Date: " + baseDate.Add(time.Duration(uid)*time.Minute).Format(time.RFC1123Z),
		"Content-Type: text/plain; charset=utf-8",
	}, "body of "+subject)
}

// failingStore rejects the upsert of chosen UIDs and passes everything else
// through to the real store.
type failingStore struct {
	*store.Store
	fail map[uint32]error
}

func (s *failingStore) UpsertEmail(ctx context.Context, e *types.Email) (bool, error) {
	if err, ok := s.fail[e.UID]; ok {
		return false, err
	}
	return s.Store.UpsertEmail(ctx, e)
}
