package scheduler

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/modules/points/config"
	"github.com/pointsflow/points-indexer/modules/points/usecase"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic crawl, snapshot calculation and group ranking
// jobs. An empty cron spec disables the corresponding job.
type Scheduler struct {
	cron    *cron.Cron
	usecase *usecase.Usecase
}

func New(ctx context.Context, cfg config.Scheduler, uc *usecase.Usecase) (*Scheduler, error) {
	s := &Scheduler{
		// Skip a tick while the previous run of the same job is still going;
		// runs must not overlap.
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		usecase: uc,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"crawl", cfg.CrawlSpec, uc.CrawlAll},
		{"calculate", cfg.CalculateSpec, func(ctx context.Context) error {
			_, err := uc.Calculate(ctx)
			return err
		}},
		{"ranking", cfg.RankingSpec, func(ctx context.Context) error {
			_, err := uc.RankGroups(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		job := job
		jobCtx := logger.WithContext(ctx, slogx.String("job", job.name))
		if _, err := s.cron.AddFunc(job.spec, func() {
			if err := job.run(jobCtx); err != nil {
				logger.ErrorContext(jobCtx, "Scheduled job failed", err)
			}
		}); err != nil {
			return nil, errors.Wrapf(err, "invalid cron spec for job %q", job.name)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}
