package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/clinic-scheduler/internal/scheduling"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

// Scheduler fires the sweeps on the clinic's wall clock. Overlapping ticks
// of the same job are skipped, never queued.
type Scheduler struct {
	cron    *cron.Cron
	runner  *Runner
	clock   scheduling.Clock
	log     *logger.Logger
	metrics *metrics.Metrics
}

type ScheduleConfig struct {
	// ReminderSpec is a five-field cron expression in the clinic zone.
	ReminderSpec    string
	OverdueInterval time.Duration
}

func NewScheduler(runner *Runner, cfg ScheduleConfig, clock scheduling.Clock, log *logger.Logger, m *metrics.Metrics) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	if clock == nil {
		clock = scheduling.SystemClock{Location: runner.loc}
	}
	if cfg.OverdueInterval <= 0 {
		return nil, fmt.Errorf("overdue interval must be positive, got %s", cfg.OverdueInterval)
	}

	cronLog := log.With("cron")
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(runner.loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		runner:  runner,
		clock:   clock,
		log:     log.With("scheduler"),
		metrics: m,
	}

	if _, err := s.cron.AddFunc(cfg.ReminderSpec, s.runReminders); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderSpec, err)
	}
	s.cron.Schedule(cron.Every(cfg.OverdueInterval), cron.FuncJob(s.runOverdue))
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("sweep scheduler started", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop prevents new ticks and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runReminders() {
	started := time.Now()
	_, err := s.runner.RunReminderSweep(context.Background(), s.clock.Now())
	s.metrics.ObserveSweep(sweepReminder, started, err)
	if err != nil {
		s.log.Error(err, "reminder sweep failed")
	}
}

func (s *Scheduler) runOverdue() {
	started := time.Now()
	_, err := s.runner.RunOverdueSweep(context.Background(), s.clock.Now())
	s.metrics.ObserveSweep(sweepOverdue, started, err)
	if err != nil {
		s.log.Error(err, "overdue sweep failed")
	}
}
