package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/brandon/mailsync/internal/schedule"
	"github.com/brandon/mailsync/internal/store"
	"github.com/brandon/mailsync/pkg/types"
)

func optionalOwner() *cli.StringFlag {
	return &cli.StringFlag{Name: "owner", Usage: "owner whose mail to use"}
}

func requiredOwner() *cli.StringFlag {
	return &cli.StringFlag{Name: "owner", Usage: "owner whose mail to use", Required: true}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func syncCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "run one sync over all servers, one owner or one server",
		Flags: []cli.Flag{
			optionalOwner(),
			&cli.StringFlag{Name: "server", Usage: "server name (requires --owner)"},
		},
		Action: func(c *cli.Context) error {
			scope := types.Scope{Owner: c.String("owner"), Server: c.String("server")}
			if scope.Server != "" && scope.Owner == "" {
				return cli.Exit("--server requires --owner", 2)
			}

			return withRuntime(logger, func(rt *runtime) error {
				ctx, cancel := signalContext()
				defer cancel()

				report, err := rt.orchestrator().RunSync(ctx, scope)
				if err != nil {
					return err
				}

				if scope.Single() {
					r := report.Results[0]
					if err := printJSON(map[string]string{"status": r.Status, "message": r.Message}); err != nil {
						return err
					}
				} else if err := printJSON(report); err != nil {
					return err
				}

				if n := report.Failed(); n > 0 {
					return cli.Exit(fmt.Sprintf("%d of %d servers failed", n, len(report.Results)), 1)
				}
				return nil
			})
		},
	}
}

func serveCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "sync all servers on a schedule until interrupted",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "now", Usage: "also run a sync immediately"},
		},
		Action: func(c *cli.Context) error {
			return withRuntime(logger, func(rt *runtime) error {
				ctx, cancel := signalContext()
				defer cancel()

				orch := rt.orchestrator()
				run := func(ctx context.Context) {
					if _, err := orch.RunSync(ctx, types.Scope{}); err != nil {
						logger.WithError(err).Error("Sync run failed")
					}
				}

				sched := schedule.New(logger)
				if err := sched.Add("sync", rt.cfg.Schedule, run); err != nil {
					return err
				}

				logger.Info("Starting mailsync scheduler")
				sched.Start()
				if c.Bool("now") {
					go run(ctx)
				}

				<-ctx.Done()
				logger.Info("Shutting down mailsync scheduler")
				sched.Stop()
				return nil
			})
		},
	}
}

type serverView struct {
	Owner    string     `json:"owner"`
	Name     string     `json:"name"`
	Host     string     `json:"host"`
	Port     int        `json:"port"`
	Username string     `json:"username"`
	Limit    string     `json:"sync_limit"`
	Folders  []string   `json:"folders,omitempty"`
	LastSync *time.Time `json:"last_sync,omitempty"`
}

func serversCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "servers",
		Usage: "list configured servers and their last sync",
		Flags: []cli.Flag{optionalOwner()},
		Action: func(c *cli.Context) error {
			return withRuntime(logger, func(rt *runtime) error {
				servers, err := rt.store.ListServers(c.Context, types.Scope{Owner: c.String("owner")})
				if err != nil {
					return err
				}

				views := make([]serverView, 0, len(servers))
				for _, s := range servers {
					limit := string(s.Policy.Kind)
					if s.Policy.Value != nil {
						limit = fmt.Sprintf("%s:%d", limit, *s.Policy.Value)
					}
					views = append(views, serverView{
						Owner:    s.Owner,
						Name:     s.Name,
						Host:     s.Host,
						Port:     s.Port,
						Username: s.Username,
						Limit:    limit,
						Folders:  s.Folders,
						LastSync: s.LastSync,
					})
				}
				return printJSON(views)
			})
		},
	}
}

func foldersCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "folders",
		Usage: "list synced folders of an owner",
		Flags: []cli.Flag{requiredOwner()},
		Action: func(c *cli.Context) error {
			return withRuntime(logger, func(rt *runtime) error {
				folders, err := rt.store.ListFolders(c.Context, c.String("owner"))
				if err != nil {
					return err
				}
				return printJSON(folders)
			})
		},
	}
}

func statsCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "show email and thread counts of an owner",
		Flags: []cli.Flag{requiredOwner()},
		Action: func(c *cli.Context) error {
			return withRuntime(logger, func(rt *runtime) error {
				stats, err := rt.store.Statistics(c.Context, c.String("owner"))
				if err != nil {
					return err
				}
				return printJSON(stats)
			})
		},
	}
}

// dateLayout is the layout of the --from and --to flags
const dateLayout = "2006-01-02"

func searchFlags() []cli.Flag {
	return []cli.Flag{
		requiredOwner(),
		&cli.StringFlag{Name: "q", Usage: "full-text query over subject, sender, recipient and body"},
		&cli.StringFlag{Name: "server", Usage: "exact server name"},
		&cli.StringFlag{Name: "sender", Usage: "sender substring"},
		&cli.StringFlag{Name: "subject", Usage: "subject substring"},
		&cli.StringFlag{Name: "folder", Usage: "exact folder name"},
		&cli.TimestampFlag{Name: "from", Layout: dateLayout, Timezone: time.UTC, Usage: "first day to include (YYYY-MM-DD)"},
		&cli.TimestampFlag{Name: "to", Layout: dateLayout, Timezone: time.UTC, Usage: "last day to include (YYYY-MM-DD)"},
		&cli.IntFlag{Name: "limit", Value: 100, Usage: "maximum results (1-1000)"},
	}
}

// searchOptions reads the search flags. --to covers the whole of its day.
func searchOptions(c *cli.Context) store.SearchOptions {
	opts := store.SearchOptions{
		Owner:    c.String("owner"),
		Query:    c.String("q"),
		Server:   c.String("server"),
		Sender:   c.String("sender"),
		Subject:  c.String("subject"),
		Folder:   c.String("folder"),
		DateFrom: c.Timestamp("from"),
		Limit:    c.Int("limit"),
	}
	if to := c.Timestamp("to"); to != nil {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		opts.DateTo = &end
	}
	return opts
}

func searchCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "search stored emails of an owner",
		Flags: searchFlags(),
		Action: func(c *cli.Context) error {
			return withRuntime(logger, func(rt *runtime) error {
				results, err := rt.store.Search(c.Context, searchOptions(c))
				if err != nil {
					return err
				}
				return printJSON(results)
			})
		},
	}
}

func threadCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "thread",
		Usage: "list threads of an owner, or the emails of one thread",
		Flags: []cli.Flag{
			requiredOwner(),
			&cli.StringFlag{Name: "id", Usage: "thread id to show"},
			&cli.IntFlag{Name: "limit", Value: 100, Usage: "maximum threads listed (1-1000)"},
		},
		Action: func(c *cli.Context) error {
			return withRuntime(logger, func(rt *runtime) error {
				owner := c.String("owner")
				if id := c.String("id"); id != "" {
					emails, err := rt.store.ListThread(c.Context, owner, id)
					if err != nil {
						return err
					}
					return printJSON(emails)
				}

				threads, err := rt.store.ListThreads(c.Context, owner, c.Int("limit"))
				if err != nil {
					return err
				}
				return printJSON(threads)
			})
		},
	}
}
