package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/telegram-query-cli/internal/logging"
	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// CycleFunc is one full polling cycle.
type CycleFunc func(ctx context.Context) error

// Scheduler owns the single repeating polling task. The first cycle runs on
// Start, the repeating entry is registered once it returns.
type Scheduler struct {
	interval time.Duration
	cycle    CycleFunc
	logger   *log.Logger

	mu      sync.Mutex
	runner  *cron.Cron
	entry   cron.EntryID
	started bool
}

func NewScheduler(interval time.Duration, cycle CycleFunc, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Scheduler{interval: interval, cycle: cycle, logger: logger}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval < time.Second {
		return fmt.Errorf("poll interval %s is below one second", s.interval)
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.started = true
	s.mu.Unlock()

	s.runCycle(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	cronLogger := logging.CronLogger{Logger: s.logger}
	runner := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	entry := runner.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.runCycle(ctx)
	}))

	s.mu.Lock()
	s.runner = runner
	s.entry = entry
	s.mu.Unlock()

	runner.Start()
	s.logger.Info("next cycle scheduled", "in", s.interval, "at", time.Now().Add(s.interval).Format(time.RFC3339))
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}

// Stop removes the repeating task and returns a context that is done once any
// running cycle has returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.runner.Remove(s.entry)
	stopped := s.runner.Stop()
	s.runner = nil
	return stopped
}

func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cycle panicked", "panic", r)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	if err := s.cycle(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("cycle failed", "err", err)
		return
	}
	s.logger.Debug("cycle completed", "took", time.Since(started).Round(time.Millisecond))
}
