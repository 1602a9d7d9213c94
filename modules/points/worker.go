package points

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/common"
	"github.com/pointsflow/points-indexer/modules/points/scheduler"
	"github.com/pointsflow/points-indexer/modules/points/usecase"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"github.com/pointsflow/points-indexer/pkg/reportingclient"
)

const (
	stopTimeout = 30 * time.Second

	// senderBackfillBatch bounds getTransaction lookups per backfill pass.
	senderBackfillBatch int32 = 500
)

// Worker drives the points module: an initial catch-up crawl and calculation,
// then the periodic scheduler until the context is cancelled.
type Worker struct {
	usecase         *usecase.Usecase
	scheduler       *scheduler.Scheduler
	reportingClient *reportingclient.ReportingClient
	chain           common.Chain
	cleanupFuncs    []func(context.Context) error

	stopOnce sync.Once
}

func NewWorker(uc *usecase.Usecase, sched *scheduler.Scheduler, reportingClient *reportingclient.ReportingClient, chain common.Chain, cleanupFuncs []func(context.Context) error) *Worker {
	return &Worker{
		usecase:         uc,
		scheduler:       sched,
		reportingClient: reportingClient,
		chain:           chain,
		cleanupFuncs:    cleanupFuncs,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	if w.reportingClient != nil {
		if err := w.reportingClient.SubmitNodeReport(ctx, "points", w.chain); err != nil {
			logger.WarnContext(ctx, "Failed to submit node report", slogx.Error(err))
		}
	}

	// Catch up before handing over to the scheduler.
	if err := w.usecase.CrawlAll(ctx); err != nil {
		return errors.Wrap(err, "initial crawl failed")
	}
	snapshot, err := w.usecase.Calculate(ctx)
	if err != nil {
		return errors.Wrap(err, "initial calculation failed")
	}
	if snapshot != nil && w.reportingClient != nil {
		if err := w.reportingClient.SubmitSnapshotReport(ctx, reportingclient.SubmitSnapshotReportPayload{
			Type:        "points",
			Chain:       w.chain,
			Series:      snapshot.Series,
			BlockHeight: snapshot.BlockHeight,
			Records:     len(snapshot.Records),
		}); err != nil {
			logger.WarnContext(ctx, "Failed to submit snapshot report", slogx.Error(err))
		}
	}
	if fixed, err := w.usecase.FixEventSenders(ctx, senderBackfillBatch); err != nil {
		logger.WarnContext(ctx, "Failed to backfill event senders", slogx.Error(err))
	} else if fixed > 0 {
		logger.InfoContext(ctx, "Backfilled event senders", slogx.Int("fixed", fixed))
	}

	w.scheduler.Start()
	<-ctx.Done()
	return w.stop()
}

func (w *Worker) stop() (err error) {
	w.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()

		if stopErr := w.scheduler.Stop(ctx); stopErr != nil {
			err = errors.Wrap(stopErr, "scheduler stop failed")
		}
		for _, cleanup := range w.cleanupFuncs {
			if cleanupErr := cleanup(ctx); cleanupErr != nil && err == nil {
				err = errors.Wrap(cleanupErr, "cleanup failed")
			}
		}
	})
	return err
}
