package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/modules/points/datagateway"
)

var _ datagateway.CheckpointDataGateway = (*Repository)(nil)

func (r *Repository) GetCheckpoint(ctx context.Context, sourceId string) (uint64, error) {
	var nextCrawlBlock int64
	err := r.queryable().QueryRow(ctx, `
		SELECT next_crawl_block FROM points_checkpoints WHERE source_id = $1
	`, sourceId).Scan(&nextCrawlBlock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errors.Wrapf(errs.NotFound, "no checkpoint for source %q", sourceId)
		}
		return 0, errors.Wrap(err, "failed to get checkpoint")
	}
	return uint64(nextCrawlBlock), nil
}

// AdvanceCheckpoint upserts the checkpoint, refusing to move it backward.
// The WHERE guard makes a concurrent or replayed backward move a no-op at
// the storage level; it is reported as errs.ConflictSetting so the run
// aborts without mutating durable state.
func (r *Repository) AdvanceCheckpoint(ctx context.Context, sourceId string, nextBlock uint64) error {
	tag, err := r.queryable().Exec(ctx, `
		INSERT INTO points_checkpoints (source_id, next_crawl_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source_id) DO UPDATE
			SET next_crawl_block = EXCLUDED.next_crawl_block, updated_at = now()
			WHERE points_checkpoints.next_crawl_block <= EXCLUDED.next_crawl_block
	`, sourceId, int64(nextBlock))
	if err != nil {
		return errors.Wrap(err, "failed to advance checkpoint")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errs.ConflictSetting, "checkpoint for source %q would move backward to %d", sourceId, nextBlock)
	}
	return nil
}

func (r *Repository) ResetCheckpoint(ctx context.Context, sourceId string, nextBlock uint64) error {
	_, err := r.queryable().Exec(ctx, `
		INSERT INTO points_checkpoints (source_id, next_crawl_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source_id) DO UPDATE
			SET next_crawl_block = EXCLUDED.next_crawl_block, updated_at = now()
	`, sourceId, int64(nextBlock))
	if err != nil {
		return errors.Wrap(err, "failed to reset checkpoint")
	}
	return nil
}
