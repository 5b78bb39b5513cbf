// Package schedule runs jobs on cron specs with seconds precision.
package schedule

import (
	"context"
	"fmt"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs registered jobs until stopped. A job that is still running
// when its next tick fires is skipped for that tick, and a panicking job is
// logged and recovered.
type Scheduler struct {
	cron   *cronv3.Cron
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler
func New(logger *logrus.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cronv3.New(
			cronv3.WithSeconds(),
			cronv3.WithLogger(cl),
			cronv3.WithChain(
				cronv3.SkipIfStillRunning(cl),
				cronv3.Recover(cl),
			),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under name. The job's context is cancelled by Stop.
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.WithField("job", name).Debug("Running scheduled job")
		job(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"schedule": spec,
	}).Info("Registered scheduled job")
	return nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
}

// cronLogger routes cron's own logging to logrus
type cronLogger struct {
	logger *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
