package operations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kebairia/backupctl/internal/backup"
	"github.com/kebairia/backupctl/internal/logger"
)

const (
	AutomaticDescription = "Automatic scheduled backup"

	MinIntervalHours = 1
	MaxIntervalHours = 168
)

// IncrementalCreator is the part of Manager the scheduler drives.
type IncrementalCreator interface {
	CreateIncrementalBackup(ctx context.Context, description string) (*backup.Record, error)
}

// Scheduler runs an incremental backup at a fixed interval. At most one
// schedule is registered at a time.
type Scheduler struct {
	creator IncrementalCreator
	log     logger.Logger
	metrics *Metrics

	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	interval time.Duration
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// every fires at a fixed interval from the moment it is registered.
type every struct {
	d time.Duration
}

func (e every) Next(t time.Time) time.Time { return t.Add(e.d) }

// cronLogger routes cron's own messages to the project logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

func NewScheduler(creator IncrementalCreator, log logger.Logger, metrics *Metrics) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	cl := cronLogger{log: log.With("component", "scheduler")}
	s := &Scheduler{
		creator: creator,
		log:     log,
		metrics: metrics,
		cron: cron.New(
			cron.WithLogger(cl),
			// Recover must run inside SkipIfStillRunning so a panic still
			// releases the running flag.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// ScheduleAutomaticBackup replaces any existing schedule with one that runs
// every intervalHours hours, and starts the scheduler if needed.
func (s *Scheduler) ScheduleAutomaticBackup(intervalHours int) error {
	if intervalHours < MinIntervalHours || intervalHours > MaxIntervalHours {
		return backup.NewError(backup.ErrInvalidArgument, "schedule automatic backup", "",
			fmt.Errorf("interval must be between %d and %d hours, got %d",
				MinIntervalHours, MaxIntervalHours, intervalHours))
	}
	s.scheduleEvery(time.Duration(intervalHours) * time.Hour)
	return nil
}

func (s *Scheduler) scheduleEvery(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = s.cron.Schedule(every{d: d}, cron.FuncJob(s.run))
	s.interval = d
	s.log.Info("automatic backup scheduled", "interval", d.String())
	s.startLocked()
}

// Cancel removes the current schedule without stopping the scheduler.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
		s.interval = 0
		s.log.Info("automatic backup cancelled")
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

func (s *Scheduler) startLocked() {
	if s.running {
		return
	}
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.cron.Start()
	s.running = true
}

// Stop halts the scheduler and waits for a running backup to finish. When
// ctx expires first the running backup is cancelled and ctx.Err is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	done := s.cron.Stop()
	cancel := s.cancel
	s.mu.Unlock()

	select {
	case <-done.Done():
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		<-done.Done()
		return ctx.Err()
	}
}

// Interval is the active schedule's period, or zero when none is set.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Next is the next planned run, or the zero time when nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Entries is the number of registered schedules.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	rec, err := s.creator.CreateIncrementalBackup(ctx, AutomaticDescription)
	s.metrics.scheduledRuns.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		s.log.Error("scheduled backup failed", "error", err)
		return
	}
	s.log.Info("scheduled backup completed", "id", rec.ID, "size", rec.Size)
}
