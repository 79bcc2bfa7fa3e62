package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pochinki/pochinki/internal/app"
	"github.com/pochinki/pochinki/internal/logging"
	"github.com/pochinki/pochinki/internal/reporting"
)

// Cleanup runs together with every n-th ingestion cycle
const CleanupEvery = 10

// cronLogger adapts slog to the logger interface of robfig/cron
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err.Error())...)
}

type Scheduler struct {
	logger   *slog.Logger
	interval time.Duration

	runCycle app.RunIngestionCycle
	cleanup  app.Cleanup

	iterations atomic.Int64
}

func New(logger *slog.Logger, interval time.Duration, runCycle app.RunIngestionCycle, cleanup app.Cleanup) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("update interval must be at least one second, got %s", interval)
	}

	return &Scheduler{
		logger:   logger.With("component", "scheduler"),
		interval: interval,

		runCycle: runCycle,
		cleanup:  cleanup,
	}, nil
}

// Run triggers an ingestion cycle right away and then on every interval until ctx is cancelled.
// A tick that fires while the previous cycle is still running is skipped.
// Run returns once the running job, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = logging.AddToContext(ctx, s.logger)
	l := cronLogger{logger: s.logger}

	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l)),
	)

	job := cron.NewChain(cron.SkipIfStillRunning(l)).Then(cron.FuncJob(func() {
		s.tick(ctx)
	}))

	_, err := c.AddJob(fmt.Sprintf("@every %s", s.interval.String()), job)
	if err != nil {
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}

	var initial sync.WaitGroup
	initial.Add(1)
	go func() {
		defer initial.Done()
		job.Run()
	}()

	c.Start()
	s.logger.InfoContext(ctx, "scheduler started", "interval", s.interval.String())

	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	initial.Wait()

	s.logger.Info("scheduler stopped", "iterations", s.iterations.Load())
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	iteration := s.iterations.Add(1)

	ctx = reporting.WithHub(ctx)
	ctx = logging.AddMetaToContext(ctx, slog.String("job", "ingestion"), slog.Int64("iteration", iteration))
	logger := logging.FromContext(ctx)

	report, err := s.runCycle(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		logger.InfoContext(ctx, "ingestion cycle interrupted by shutdown", "error", err.Error())
		return
	case err != nil:
		reporting.Report(ctx, fmt.Errorf("ingestion cycle failed: %w", err))
	case report.TotalFailures() > 0:
		logger.WarnContext(ctx, "ingestion cycle finished with failures",
			"failures", report.TotalFailures(),
			"rateLimited", report.RateLimited,
		)
	}

	if iteration%CleanupEvery != 0 {
		return
	}

	ctx = logging.AddMetaToContext(ctx, slog.String("job", "cleanup"))
	err = s.cleanup(ctx)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("cleanup failed: %w", err))
	}
}
