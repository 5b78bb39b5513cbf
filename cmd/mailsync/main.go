package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/brandon/mailsync/internal/config"
	"github.com/brandon/mailsync/internal/email"
	"github.com/brandon/mailsync/internal/store"
	"github.com/brandon/mailsync/internal/syncer"
)

var version = "dev"

func main() {
	// Set up logging; stdout is kept for command output.
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	app := &cli.App{
		Name:    "mailsync",
		Usage:   "synchronize IMAP mailboxes into a local store",
		Version: version,
		Commands: []*cli.Command{
			syncCommand(logger),
			serveCommand(logger),
			serversCommand(logger),
			foldersCommand(logger),
			statsCommand(logger),
			searchCommand(logger),
			threadCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.WithError(err).Fatal("mailsync failed")
	}
}

// runtime holds what every command needs once configuration is loaded
type runtime struct {
	cfg    *config.Config
	store  *store.Store
	logger *logrus.Logger
}

// withRuntime loads configuration, opens the store, seeds it from the
// servers file and runs fn.
func withRuntime(logger *logrus.Logger, fn func(rt *runtime) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	configureLogger(logger, cfg)

	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	rt := &runtime{cfg: cfg, store: st, logger: logger}
	if err := rt.seedServers(context.Background()); err != nil {
		return err
	}
	return fn(rt)
}

func configureLogger(logger *logrus.Logger, cfg *config.Config) {
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// seedServers upserts the servers defined in the servers file. A missing
// file is not an error: servers may already be in the store.
func (rt *runtime) seedServers(ctx context.Context) error {
	servers, err := config.LoadServers(rt.cfg.ServersFile)
	if err != nil {
		if _, statErr := os.Stat(rt.cfg.ServersFile); errors.Is(statErr, fs.ErrNotExist) {
			rt.logger.WithField("path", rt.cfg.ServersFile).Debug("No servers file")
			return nil
		}
		return err
	}

	for i := range servers {
		if _, err := rt.store.UpsertServer(ctx, &servers[i]); err != nil {
			rt.logger.WithError(err).WithFields(logrus.Fields{
				"owner":  servers[i].Owner,
				"server": servers[i].Name,
			}).Warn("Failed to store server")
		}
	}
	rt.logger.WithField("count", len(servers)).Debug("Loaded servers file")
	return nil
}

// orchestrator wires the sync engine to the store and the IMAP dialer
func (rt *runtime) orchestrator() *syncer.Orchestrator {
	imapDialer := email.NewIMAPDialer(rt.cfg.NetworkTimeout, rt.logger)
	dialer := syncer.DialerFunc(func(ctx context.Context, srv *config.ServerConfig) (syncer.Session, error) {
		session, err := imapDialer.Dial(ctx, srv)
		if err != nil {
			return nil, err
		}
		return session, nil
	})

	return syncer.NewOrchestrator(rt.store, dialer, rt.logger, syncer.Options{
		Workers:   rt.cfg.Workers,
		BatchSize: rt.cfg.FetchBatchSize,
	})
}
