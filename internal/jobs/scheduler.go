package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// Job is a unit of periodic background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	spec string
	job  Job
	id   cron.EntryID
}

// Scheduler runs registered jobs on cron specs until its context ends.
// Overlapping runs of the same job are skipped and panics are recovered.
type Scheduler struct {
	log  *logger.Logger
	cron *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]*entry
}

func NewScheduler(baseLog *logger.Logger) *Scheduler {
	log := baseLog.With("component", "JobScheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		log: log,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:     context.Background(),
		entries: map[string]*entry{},
	}
}

// Register schedules job on spec, e.g. "@every 1h" or "0 3 * * *".
func (s *Scheduler) Register(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[job.Name()]; dup {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	e := &entry{spec: spec, job: job}
	id, err := s.cron.AddFunc(spec, func() { s.run(s.context(), e.job) })
	if err != nil {
		return fmt.Errorf("schedule %q (%s): %w", job.Name(), spec, err)
	}
	e.id = id
	s.entries[job.Name()] = e
	return nil
}

// Start runs the cron loop and blocks until ctx is cancelled, then waits for
// in-flight jobs to return.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	for name, e := range s.entries {
		s.log.Info("job scheduled", "job", name, "spec", e.spec)
	}
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(30 * time.Second):
		s.log.Warn("jobs still running at shutdown")
	}
	return nil
}

// RunOnce executes a registered job immediately, outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, e.job)
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		s.log.Warn("job failed", "job", job.Name(), "elapsed", time.Since(start), "error", err)
		return err
	}
	s.log.Debug("job finished", "job", job.Name(), "elapsed", time.Since(start))
	return nil
}

// cronLogger adapts the service logger to cron's logging interface.
type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
