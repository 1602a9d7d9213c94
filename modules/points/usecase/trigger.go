package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/core/crawler"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"golang.org/x/sync/errgroup"
)

// Trigger crawls a single source up to the chain head and then recalculates
// the snapshot from the newly ingested events. Concurrent triggers for the
// same source share one crawl run.
func (u *Usecase) Trigger(ctx context.Context, sourceId string) (crawler.Result, error) {
	source, ok := u.sources[sourceId]
	if !ok {
		return crawler.Result{}, errors.WithStack(errs.NotFound)
	}

	result, err := u.crawler.Crawl(ctx, source)
	if err != nil {
		return crawler.Result{}, errors.Wrapf(err, "failed to crawl source %q", sourceId)
	}

	if _, err := u.Calculate(ctx); err != nil {
		// Ingestion already committed; surface the calculation failure
		// without losing the crawl result.
		return result, errors.Wrap(err, "failed to calculate snapshot after crawl")
	}

	logger.InfoContext(ctx, "Triggered source crawl",
		slogx.String("sourceId", sourceId),
		slogx.Uint64("fromBlock", result.FromBlock),
		slogx.Uint64("toBlock", result.ToBlock),
		slogx.Int("totalEvents", result.TotalEvents),
	)
	return result, nil
}

// CrawlAll crawls every configured source once, concurrently. Sources are
// independent; a failure in one does not block the others from finishing
// their current window, but the first error is returned.
func (u *Usecase) CrawlAll(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, source := range u.sources {
		source := source
		eg.Go(func() error {
			if _, err := u.crawler.Crawl(egCtx, source); err != nil {
				return errors.Wrapf(err, "failed to crawl source %q", source.Id)
			}
			return nil
		})
	}
	return errors.WithStack(eg.Wait())
}
