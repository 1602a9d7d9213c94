package usecase

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/pointsflow/points-indexer/modules/points/ranking"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
)

// RankGroups recomputes the referral-group ranking from all ingested stake
// deposits and persists it as the current ranking.
func (u *Usecase) RankGroups(ctx context.Context) (*entity.GroupRanking, error) {
	blockHeight, err := u.eventDg.GetMaxBlockNumber(ctx)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return nil, errors.Wrap(err, "failed to get max event block number")
	}
	deposits, err := u.eventDg.GetStakeDeposits(ctx, blockHeight)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stake deposits")
	}
	edges, err := u.referralEdges(ctx)
	if err != nil {
		return nil, err
	}

	groupRanking := ranking.Rank(deposits, edges, u.boostTable, u.tierWeights, time.Now())
	if err := u.snapshotDg.CreateGroupRanking(ctx, groupRanking); err != nil {
		return nil, errors.Wrap(err, "failed to create group ranking")
	}

	logger.InfoContext(ctx, "Ranked referral groups", slogx.Int("groups", len(groupRanking.Groups)))
	return groupRanking, nil
}

// LatestGroupRanking returns the current group ranking.
func (u *Usecase) LatestGroupRanking(ctx context.Context) (*entity.GroupRanking, error) {
	groupRanking, err := u.snapshotDg.GetLatestGroupRanking(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil, errors.WithStack(err)
		}
		return nil, errors.Wrap(err, "failed to get latest group ranking")
	}
	return groupRanking, nil
}
