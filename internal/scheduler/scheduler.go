// Package scheduler runs the periodic maintenance jobs of the server.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultCleanupSchedule runs the token cleanup at the top of every hour.
const DefaultCleanupSchedule = "0 0 * * * *"

// TokenCleaner deletes expired session tokens.
type TokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the expired token cleanup on a cron schedule with a seconds field.
// Runs never overlap: a run still in progress when the next one is due makes the next one
// skip.
type Scheduler struct {
	schedule cron.Schedule
	spec     string
	cleaner  TokenCleaner
	logger   *slog.Logger
}

// New parses spec and creates a scheduler. An invalid spec is an error.
func New(spec string, cleaner TokenCleaner, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	).Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return &Scheduler{
		schedule: schedule,
		spec:     spec,
		cleaner:  cleaner,
		logger:   logger,
	}, nil
}

// Start runs the schedule until ctx is done, then waits for a running cleanup to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	cronLogger := &slogAdapter{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.RunOnce(ctx)
	}))

	s.logger.Info("starting token cleanup scheduler", slog.String("schedule", s.spec))
	c.Start()

	<-ctx.Done()

	s.logger.Info("stopping token cleanup scheduler")
	<-c.Stop().Done()
	return nil
}

// RunOnce deletes the expired tokens now. Errors are logged and returned.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	deleted, err := s.cleaner.CleanupExpired(ctx)
	if err != nil {
		s.logger.Error("token cleanup failed", slog.Any("error", err))
		return 0, err
	}
	s.logger.Info("token cleanup finished",
		slog.Int64("deleted", deleted),
		slog.Duration("duration", time.Since(start)))
	return deleted, nil
}

// slogAdapter routes cron's own logging to slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a *slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
