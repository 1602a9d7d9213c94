package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/pointsflow/points-indexer/modules/points/ranking"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsecase(events *fakeEventStore, snapshots *fakeSnapshotStore) *Usecase {
	return New(Params{
		EventDg:    events,
		SnapshotDg: snapshots,
		Series:     "points",
		BoostTable: ranking.BoostTable{decimal.NewFromFloat(0.2)},
	})
}

func stakeEvent(user common.Address, block uint64, amount int64, logIndex uint) *entity.Event {
	return &entity.Event{
		SourceId:    "staking",
		Kind:        entity.EventKindStake,
		BlockNumber: block,
		TxHash:      common.BytesToHash([]byte{byte(block), byte(logIndex)}),
		LogIndex:    logIndex,
		User:        user,
		Amount:      decimal.NewFromInt(amount),
	}
}

func TestCalculateNoEvents(t *testing.T) {
	uc := newTestUsecase(&fakeEventStore{}, &fakeSnapshotStore{})

	snapshot, err := uc.Calculate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestCalculateCreatesSnapshotAndRanking(t *testing.T) {
	events := &fakeEventStore{events: []*entity.Event{
		stakeEvent(userA, 100, 1000, 0),
	}}
	snapshots := &fakeSnapshotStore{}
	uc := newTestUsecase(events, snapshots)

	snapshot, err := uc.Calculate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, "points", snapshot.Series)
	assert.Equal(t, uint64(100), snapshot.BlockHeight)
	require.Len(t, snapshot.Records, 1)

	// A group ranking was computed on the fly and the sole staker ranks first.
	record := snapshot.Records[0]
	assert.Equal(t, 1, record.Rank)
	assert.True(t, record.GroupBoost.Equal(decimal.NewFromFloat(0.2)))
	assert.True(t, record.Multiplier.Equal(decimal.NewFromFloat(1.2)))
	assert.True(t, record.DailyPoints[entity.CategoryStaking].Equal(decimal.NewFromInt(1200)))

	require.Len(t, snapshots.rankings, 1)
	require.Len(t, snapshots.snapshots, 1)
}

func TestCalculateIdempotentWithoutNewEvents(t *testing.T) {
	events := &fakeEventStore{events: []*entity.Event{
		stakeEvent(userA, 100, 1000, 0),
	}}
	snapshots := &fakeSnapshotStore{}
	uc := newTestUsecase(events, snapshots)

	first, err := uc.Calculate(context.Background())
	require.NoError(t, err)
	again, err := uc.Calculate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Id, again.Id)
	assert.Len(t, snapshots.snapshots, 1)
}

func TestCalculateAccruesAcrossRuns(t *testing.T) {
	events := &fakeEventStore{events: []*entity.Event{
		stakeEvent(userA, 100, 1000, 0),
	}}
	snapshots := &fakeSnapshotStore{}
	uc := newTestUsecase(events, snapshots)

	first, err := uc.Calculate(context.Background())
	require.NoError(t, err)
	firstTotal := first.RecordByUser()[userA].Cumulative[entity.CategoryStaking]

	// New deposit after the first snapshot's height.
	events.events = append(events.events, stakeEvent(userA, 200, 500, 1))

	second, err := uc.Calculate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, uint64(200), second.BlockHeight)

	secondTotal := second.RecordByUser()[userA].Cumulative[entity.CategoryStaking]
	// Only the new flow accrues on top of the previous cumulative total.
	assert.True(t, secondTotal.GreaterThan(firstTotal))
	expected := firstTotal.Add(decimal.NewFromInt(500).Mul(decimal.NewFromFloat(1.2)))
	assert.True(t, secondTotal.Equal(expected), "got %s want %s", secondTotal, expected)
}

func TestRankGroupsPersistsRanking(t *testing.T) {
	events := &fakeEventStore{events: []*entity.Event{
		stakeEvent(userA, 100, 1000, 0),
		stakeEvent(userB, 110, 2000, 0),
	}}
	snapshots := &fakeSnapshotStore{}
	uc := newTestUsecase(events, snapshots)

	groupRanking, err := uc.RankGroups(context.Background())
	require.NoError(t, err)

	require.Len(t, groupRanking.Groups, 2)
	assert.Equal(t, userB, groupRanking.Groups[0].GroupId)
	assert.Len(t, snapshots.rankings, 1)
}

func TestSnapshotRangeRejectsInvertedRange(t *testing.T) {
	uc := newTestUsecase(&fakeEventStore{}, &fakeSnapshotStore{})

	_, err := uc.SnapshotRange(context.Background(), time.Now(), time.Now().Add(-time.Hour))
	assert.Error(t, err)
}

func TestExportSnapshotCSV(t *testing.T) {
	events := &fakeEventStore{events: []*entity.Event{
		stakeEvent(userA, 100, 1000, 0),
	}}
	snapshots := &fakeSnapshotStore{}
	uc := newTestUsecase(events, snapshots)

	_, err := uc.Calculate(context.Background())
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, uc.ExportSnapshotCSV(context.Background(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "schema_version,series,block_height,user,"))
	assert.True(t, strings.HasPrefix(lines[1], "1,points,100,"+userA.Hex()))
	assert.True(t, strings.HasSuffix(lines[0], ",total_points"))
}

func TestTriggerUnknownSource(t *testing.T) {
	uc := newTestUsecase(&fakeEventStore{}, &fakeSnapshotStore{})

	_, err := uc.Trigger(context.Background(), "no-such-source")
	assert.Error(t, err)
}

type fakeChainSource struct {
	senders map[common.Hash]common.Address
}

func (f *fakeChainSource) Name() string { return "fake" }

func (f *fakeChainSource) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	return 0, nil
}

func (f *fakeChainSource) GetLogs(ctx context.Context, address common.Address, topic0 common.Hash, fromBlock, toBlock uint64) ([]ethtypes.Log, error) {
	return nil, nil
}

func (f *fakeChainSource) GetTransactionSender(ctx context.Context, txHash common.Hash) (common.Address, error) {
	return f.senders[txHash], nil
}

func TestFixEventSenders(t *testing.T) {
	event := stakeEvent(userA, 100, 1000, 0)
	events := &fakeEventStore{events: []*entity.Event{event}}
	uc := New(Params{
		EventDg:    events,
		SnapshotDg: &fakeSnapshotStore{},
		Datasource: &fakeChainSource{senders: map[common.Hash]common.Address{event.TxHash: userB}},
		Series:     "points",
	})

	fixed, err := uc.FixEventSenders(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	require.NotNil(t, event.Sender)
	assert.Equal(t, userB, *event.Sender)

	// Nothing left to fix.
	fixed, err = uc.FixEventSenders(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
