package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"market-intel/internal/clv"
	"market-intel/internal/logging"
	"market-intel/internal/poller"
)

// Job names, also used as the trigger path segment.
const (
	JobOddsSnapshot = "odds-snapshot"
	JobCLV          = "clv"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
)

// SnapshotRunner is one odds snapshot pass.
type SnapshotRunner interface {
	Run(ctx context.Context) (poller.Result, error)
}

// CLVRunner is one closing-line pass.
type CLVRunner interface {
	Run(ctx context.Context) (clv.Result, error)
}

// Config holds scheduling settings. An empty schedule leaves the job
// trigger-only.
type Config struct {
	PollSchedule string
	CLVSchedule  string
	JobTimeout   time.Duration
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (any, error)
	mu       sync.Mutex
}

// Engine owns the batch jobs and runs them on schedule or on demand. A job
// never overlaps with itself, whichever way it was started.
type Engine struct {
	jobs    map[string]*job
	order   []string
	timeout time.Duration
}

// New creates an engine with the odds snapshot and CLV jobs.
func New(snapshots SnapshotRunner, tracker CLVRunner, cfg Config) *Engine {
	e := &Engine{
		jobs:    make(map[string]*job),
		timeout: cfg.JobTimeout,
	}
	e.add(JobOddsSnapshot, cfg.PollSchedule, func(ctx context.Context) (any, error) {
		return snapshots.Run(ctx)
	})
	e.add(JobCLV, cfg.CLVSchedule, func(ctx context.Context) (any, error) {
		return tracker.Run(ctx)
	})
	return e
}

func (e *Engine) add(name, schedule string, run func(ctx context.Context) (any, error)) {
	e.jobs[name] = &job{name: name, schedule: schedule, run: run}
	e.order = append(e.order, name)
}

// Jobs lists the job names in registration order.
func (e *Engine) Jobs() []string {
	return append([]string(nil), e.order...)
}

// RunOnce runs a job to completion under the job timeout and returns its
// result. It fails with ErrJobRunning instead of waiting when the job is
// already in progress.
func (e *Engine) RunOnce(ctx context.Context, name string) (any, error) {
	j, ok := e.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if !j.mu.TryLock() {
		return nil, ErrJobRunning
	}
	defer j.mu.Unlock()

	ctx, _ = logging.WithRun(ctx, name)
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	log := logging.FromContext(ctx)

	start := time.Now()
	log.Info("Job started")
	res, err := j.run(ctx)
	if err != nil {
		log.Error("Job failed", "error", err, "duration", time.Since(start))
		return res, err
	}
	log.Info("Job finished", "duration", time.Since(start))
	return res, nil
}

// Run schedules every job that has a schedule and blocks until ctx is
// cancelled, then waits for running jobs to return.
func (e *Engine) Run(ctx context.Context) error {
	logger := cronLogger{slog.Default()}
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	for _, name := range e.order {
		j := e.jobs[name]
		if j.schedule == "" {
			continue
		}
		if _, err := c.AddFunc(j.schedule, func() {
			if _, err := e.RunOnce(ctx, name); errors.Is(err, ErrJobRunning) {
				slog.Warn("Skipping scheduled run", "job", name, "reason", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", name, j.schedule, err)
		}
		slog.Info("Job scheduled", "job", name, "schedule", j.schedule)
	}

	c.Start()
	slog.Info("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("Scheduler stopped gracefully")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
