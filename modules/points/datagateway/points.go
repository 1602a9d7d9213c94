package datagateway

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/shopspring/decimal"
)

type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CheckpointDataGateway persists, per indexed source, the next block to crawl
// from. Checkpoints only move forward.
type CheckpointDataGateway interface {
	// GetCheckpoint returns errs.NotFound if the source was never crawled.
	GetCheckpoint(ctx context.Context, sourceId string) (uint64, error)
	// AdvanceCheckpoint returns errs.ConflictSetting if nextBlock would move
	// the checkpoint backward.
	AdvanceCheckpoint(ctx context.Context, sourceId string, nextBlock uint64) error
	// ResetCheckpoint is the explicit operator reset path; it may move the
	// checkpoint backward and must never run concurrently with a live crawl.
	ResetCheckpoint(ctx context.Context, sourceId string, nextBlock uint64) error
}

// EventDataGateway is the append-only store of decoded on-chain events.
type EventDataGateway interface {
	EventReaderDataGateway
	EventWriterDataGateway
}

type EventReaderDataGateway interface {
	// GetMaxBlockNumber returns the highest stored event block, errs.NotFound
	// if the store is empty.
	GetMaxBlockNumber(ctx context.Context) (uint64, error)

	// GetCategoryBalances returns net per-category holder balances (inflows
	// minus outflows) over all events with blockNumber <= upTo.
	GetCategoryBalances(ctx context.Context, upTo uint64) (map[entity.RewardCategory]map[common.Address]decimal.Decimal, error)

	// GetCategoryFlows returns net per-category holder accruals over events
	// with blockNumber in [from, to]. Values may be negative.
	GetCategoryFlows(ctx context.Context, from, to uint64) (map[entity.RewardCategory]map[common.Address]decimal.Decimal, error)

	// GetStakeDeposits returns gross staking deposit sums per user over
	// events with blockNumber <= upTo.
	GetStakeDeposits(ctx context.Context, upTo uint64) (map[common.Address]decimal.Decimal, error)

	// GetReferralSubmissions returns all events carrying a referral token,
	// ascending by block number.
	GetReferralSubmissions(ctx context.Context) ([]entity.ReferralSubmission, error)

	// GetEventsMissingSender returns events whose transaction sender has not
	// been backfilled yet.
	GetEventsMissingSender(ctx context.Context, limit int32) ([]*entity.Event, error)
}

type EventWriterDataGateway interface {
	// CreateEvents persists decoded events. Re-delivery of an already stored
	// (sourceId, txHash, logIndex) is swallowed, not an error.
	CreateEvents(ctx context.Context, events []*entity.Event) error

	// UpdateEventSender patches the derived sender field. The logical event
	// is never altered.
	UpdateEventSender(ctx context.Context, sourceId string, txHash common.Hash, logIndex uint, sender common.Address) error
}

// SnapshotDataGateway stores immutable points snapshots and group rankings.
type SnapshotDataGateway interface {
	// CreateSnapshot atomically persists a snapshot with all its records.
	// A duplicate (series, blockHeight) is errs.Duplicate and must abort the
	// calculation run.
	CreateSnapshot(ctx context.Context, snapshot *entity.PointsSnapshot) error

	// GetLatestSnapshot returns errs.NotFound if the series has no snapshot.
	GetLatestSnapshot(ctx context.Context, series string) (*entity.PointsSnapshot, error)

	// GetSnapshotsByRange returns snapshots created within [from, to],
	// ascending by creation time.
	GetSnapshotsByRange(ctx context.Context, series string, from, to time.Time) ([]*entity.PointsSnapshot, error)

	CreateGroupRanking(ctx context.Context, ranking *entity.GroupRanking) error

	// GetLatestGroupRanking returns errs.NotFound if no ranking exists.
	GetLatestGroupRanking(ctx context.Context) (*entity.GroupRanking, error)
}
