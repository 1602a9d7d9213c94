package usecase

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/modules/points/engine"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/pointsflow/points-indexer/modules/points/referral"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
)

// Calculate produces the next points snapshot for the series. The new
// snapshot accrues points for the block range since the previous snapshot;
// history is never rewritten. Returns the existing latest snapshot when no
// new events arrived since it was taken.
func (u *Usecase) Calculate(ctx context.Context) (*entity.PointsSnapshot, error) {
	u.calcMu.Lock()
	defer u.calcMu.Unlock()

	blockHeight, err := u.eventDg.GetMaxBlockNumber(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			logger.InfoContext(ctx, "No events ingested yet, skipping snapshot calculation")
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get max event block number")
	}

	var (
		previous  *entity.PointsSnapshot
		fromBlock uint64
	)
	previous, err = u.snapshotDg.GetLatestSnapshot(ctx, u.series)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return nil, errors.Wrap(err, "failed to get latest snapshot")
	}
	if previous != nil {
		if previous.BlockHeight >= blockHeight {
			// Already covers every ingested event.
			return previous, nil
		}
		fromBlock = previous.BlockHeight + 1
	}

	balances, err := u.eventDg.GetCategoryBalances(ctx, blockHeight)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get category balances")
	}
	flows, err := u.eventDg.GetCategoryFlows(ctx, fromBlock, blockHeight)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get category flows")
	}
	edges, err := u.referralEdges(ctx)
	if err != nil {
		return nil, err
	}

	groupRanking, err := u.snapshotDg.GetLatestGroupRanking(ctx)
	if err != nil {
		if !errors.Is(err, errs.NotFound) {
			return nil, errors.Wrap(err, "failed to get latest group ranking")
		}
		groupRanking, err = u.RankGroups(ctx)
		if err != nil {
			return nil, err
		}
	}

	snapshot := engine.Calculate(u.engineConfig, engine.Input{
		Series:      u.series,
		BlockHeight: blockHeight,
		Balances:    balances,
		Flows:       flows,
		Edges:       edges,
		Ranking:     groupRanking,
		Previous:    previous,
	}, time.Now())

	if err := u.snapshotDg.CreateSnapshot(ctx, snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to create snapshot")
	}

	logger.InfoContext(ctx, "Created points snapshot",
		slogx.String("series", snapshot.Series),
		slogx.Uint64("blockHeight", snapshot.BlockHeight),
		slogx.Uint64("fromBlock", fromBlock),
		slogx.Int("records", len(snapshot.Records)),
	)
	return snapshot, nil
}

func (u *Usecase) referralEdges(ctx context.Context) (map[ethcommon.Address]ethcommon.Address, error) {
	submissions, err := u.eventDg.GetReferralSubmissions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get referral submissions")
	}
	return referral.EdgesFromSubmissions(submissions), nil
}
