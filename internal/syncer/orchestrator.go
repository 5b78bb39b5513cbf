package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/brandon/mailsync/pkg/types"
)

// DefaultWorkers is the number of servers synced concurrently.
const DefaultWorkers = 4

// Options tunes an Orchestrator.
type Options struct {
	Workers   int
	BatchSize int
}

// Orchestrator runs syncs across servers on a bounded pool.
type Orchestrator struct {
	store   Store
	servers *ServerSyncer
	workers int
	logger  *logrus.Logger
}

// NewOrchestrator wires the engine on top of store and dialer
func NewOrchestrator(store Store, dialer Dialer, logger *logrus.Logger, opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	folders := NewFolderSyncer(store, &Fetcher{BatchSize: opts.BatchSize})
	return &Orchestrator{
		store:   store,
		servers: NewServerSyncer(store, dialer, folders),
		workers: workers,
		logger:  logger,
	}
}

// RunSync syncs every server in scope and returns one result per server in
// listing order. Server failures are reported in the results; the error is
// non-nil only when the servers could not be listed, including when scope
// names a server that does not exist.
func (o *Orchestrator) RunSync(ctx context.Context, scope types.Scope) (*types.RunReport, error) {
	report := &types.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := o.logger.WithField("run_id", report.RunID)

	servers, err := o.store.ListServers(ctx, scope)
	if err != nil {
		return nil, err
	}

	report.Results = make([]types.SyncResult, len(servers))

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i := range servers {
		i := i
		g.Go(func() error {
			report.Results[i] = o.servers.Sync(ctx, log, &servers[i])
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()

	log.WithFields(logrus.Fields{
		"servers":  len(servers),
		"failed":   report.Failed(),
		"duration": report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Sync run completed")

	return report, nil
}
