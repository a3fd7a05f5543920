// Package scheduler reruns a job on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/italolelis/telegroup_downloader/internal/logctx"
)

// Job is one scheduled run. It receives the context passed to Run.
type Job func(ctx context.Context)

// Run executes job immediately and then every interval until ctx is done.
// Runs never overlap: a run that is still busy when the next one is due pushes
// the next one back.
func Run(ctx context.Context, name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}

	logger := logctx.LoggerFromContext(ctx)

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	j, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { job(ctx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()

		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.Start()

	logger.Info("job scheduled", "job_name", name, "interval", interval, "job_id", j.ID())

	<-ctx.Done()

	logger.Debug("stopping scheduler", "job_name", name)

	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}

	return nil
}
