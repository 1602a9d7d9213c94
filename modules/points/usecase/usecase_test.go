package usecase

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/shopspring/decimal"
)

var (
	userA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	userB = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

type fakeEventStore struct {
	events []*entity.Event
}

func (f *fakeEventStore) GetMaxBlockNumber(ctx context.Context) (uint64, error) {
	if len(f.events) == 0 {
		return 0, errors.WithStack(errs.NotFound)
	}
	var max uint64
	for _, event := range f.events {
		if event.BlockNumber > max {
			max = event.BlockNumber
		}
	}
	return max, nil
}

func (f *fakeEventStore) fold(from, to uint64, gross bool) map[entity.RewardCategory]map[common.Address]decimal.Decimal {
	out := make(map[entity.RewardCategory]map[common.Address]decimal.Decimal)
	for _, event := range f.events {
		if event.BlockNumber < from || event.BlockNumber > to {
			continue
		}
		category := event.Kind.Category()
		if out[category] == nil {
			out[category] = make(map[common.Address]decimal.Decimal)
		}
		amount := event.Amount
		if !event.Kind.IsInflow() && !gross {
			amount = amount.Neg()
		}
		out[category][event.User] = out[category][event.User].Add(amount)
	}
	return out
}

func (f *fakeEventStore) GetCategoryBalances(ctx context.Context, upTo uint64) (map[entity.RewardCategory]map[common.Address]decimal.Decimal, error) {
	return f.fold(0, upTo, false), nil
}

func (f *fakeEventStore) GetCategoryFlows(ctx context.Context, from, to uint64) (map[entity.RewardCategory]map[common.Address]decimal.Decimal, error) {
	return f.fold(from, to, false), nil
}

func (f *fakeEventStore) GetStakeDeposits(ctx context.Context, upTo uint64) (map[common.Address]decimal.Decimal, error) {
	deposits := make(map[common.Address]decimal.Decimal)
	for _, event := range f.events {
		if event.Kind == entity.EventKindStake && event.BlockNumber <= upTo {
			deposits[event.User] = deposits[event.User].Add(event.Amount)
		}
	}
	return deposits, nil
}

func (f *fakeEventStore) GetReferralSubmissions(ctx context.Context) ([]entity.ReferralSubmission, error) {
	var submissions []entity.ReferralSubmission
	for _, event := range f.events {
		if event.ReferralCode != "" {
			submissions = append(submissions, entity.ReferralSubmission{
				User:        event.User,
				Code:        event.ReferralCode,
				BlockNumber: event.BlockNumber,
			})
		}
	}
	return submissions, nil
}

func (f *fakeEventStore) GetEventsMissingSender(ctx context.Context, limit int32) ([]*entity.Event, error) {
	var missing []*entity.Event
	for _, event := range f.events {
		if event.Sender == nil && int32(len(missing)) < limit {
			missing = append(missing, event)
		}
	}
	return missing, nil
}

func (f *fakeEventStore) CreateEvents(ctx context.Context, events []*entity.Event) error {
	for _, event := range events {
		exists := false
		for _, stored := range f.events {
			if stored.SourceId == event.SourceId && stored.TxHash == event.TxHash && stored.LogIndex == event.LogIndex {
				exists = true
				break
			}
		}
		if !exists {
			f.events = append(f.events, event)
		}
	}
	return nil
}

func (f *fakeEventStore) UpdateEventSender(ctx context.Context, sourceId string, txHash common.Hash, logIndex uint, sender common.Address) error {
	for _, event := range f.events {
		if event.SourceId == sourceId && event.TxHash == txHash && event.LogIndex == logIndex {
			event.Sender = &sender
			return nil
		}
	}
	return errors.WithStack(errs.NotFound)
}

type fakeSnapshotStore struct {
	snapshots []*entity.PointsSnapshot
	rankings  []*entity.GroupRanking
}

func (f *fakeSnapshotStore) CreateSnapshot(ctx context.Context, snapshot *entity.PointsSnapshot) error {
	for _, stored := range f.snapshots {
		if stored.Series == snapshot.Series && stored.BlockHeight == snapshot.BlockHeight {
			return errors.WithStack(errs.Duplicate)
		}
	}
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func (f *fakeSnapshotStore) GetLatestSnapshot(ctx context.Context, series string) (*entity.PointsSnapshot, error) {
	var latest *entity.PointsSnapshot
	for _, snapshot := range f.snapshots {
		if snapshot.Series != series {
			continue
		}
		if latest == nil || snapshot.BlockHeight > latest.BlockHeight {
			latest = snapshot
		}
	}
	if latest == nil {
		return nil, errors.WithStack(errs.NotFound)
	}
	return latest, nil
}

func (f *fakeSnapshotStore) GetSnapshotsByRange(ctx context.Context, series string, from, to time.Time) ([]*entity.PointsSnapshot, error) {
	var out []*entity.PointsSnapshot
	for _, snapshot := range f.snapshots {
		if snapshot.Series == series && !snapshot.CreatedAt.Before(from) && !snapshot.CreatedAt.After(to) {
			out = append(out, snapshot)
		}
	}
	return out, nil
}

func (f *fakeSnapshotStore) CreateGroupRanking(ctx context.Context, ranking *entity.GroupRanking) error {
	f.rankings = append(f.rankings, ranking)
	return nil
}

func (f *fakeSnapshotStore) GetLatestGroupRanking(ctx context.Context) (*entity.GroupRanking, error) {
	if len(f.rankings) == 0 {
		return nil, errors.WithStack(errs.NotFound)
	}
	return f.rankings[len(f.rankings)-1], nil
}
