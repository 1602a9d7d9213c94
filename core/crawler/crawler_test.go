package crawler

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDatasource struct {
	latestBlock uint64
	latestErr   error
	logs        []ethtypes.Log

	mu          sync.Mutex
	getLogCalls [][2]uint64
	failures    int
}

func (f *fakeDatasource) Name() string { return "fake" }

func (f *fakeDatasource) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	if f.latestErr != nil {
		return 0, f.latestErr
	}
	return f.latestBlock, nil
}

func (f *fakeDatasource) GetLogs(ctx context.Context, address common.Address, topic0 common.Hash, fromBlock, toBlock uint64) ([]ethtypes.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getLogCalls = append(f.getLogCalls, [2]uint64{fromBlock, toBlock})
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rpc unavailable")
	}
	var out []ethtypes.Log
	for _, log := range f.logs {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeDatasource) GetTransactionSender(ctx context.Context, txHash common.Hash) (common.Address, error) {
	return common.Address{}, errors.WithStack(errs.NotFound)
}

type fakeCheckpoints struct {
	mu          sync.Mutex
	checkpoints map[string]uint64
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{checkpoints: make(map[string]uint64)}
}

func (f *fakeCheckpoints) GetCheckpoint(ctx context.Context, sourceId string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, ok := f.checkpoints[sourceId]
	if !ok {
		return 0, errors.WithStack(errs.NotFound)
	}
	return next, nil
}

func (f *fakeCheckpoints) AdvanceCheckpoint(ctx context.Context, sourceId string, nextBlock uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if current, ok := f.checkpoints[sourceId]; ok && nextBlock < current {
		return errors.WithStack(errs.ConflictSetting)
	}
	f.checkpoints[sourceId] = nextBlock
	return nil
}

type storedEvent struct {
	Block uint64
	Tx    common.Hash
}

type fakeSink struct {
	mu     sync.Mutex
	events []storedEvent
	err    error
}

func (f *fakeSink) StoreEvents(ctx context.Context, events []storedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func decodeStored(source Source, log ethtypes.Log) (storedEvent, error) {
	return storedEvent{Block: log.BlockNumber, Tx: log.TxHash}, nil
}

func logAt(block uint64) ethtypes.Log {
	return ethtypes.Log{BlockNumber: block, TxHash: common.BytesToHash([]byte{byte(block)})}
}

func TestCrawlStartsFromCreationBlock(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 150, logs: []ethtypes.Log{logAt(120)}}
	checkpoints := newFakeCheckpoints()
	sink := &fakeSink{}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	result, err := c.Crawl(context.Background(), Source{Id: "staking", CreationBlock: 100})
	require.NoError(t, err)

	assert.Equal(t, uint64(100), result.FromBlock)
	assert.Equal(t, uint64(150), result.ToBlock)
	assert.Equal(t, 1, result.TotalEvents)
	assert.Len(t, sink.events, 1)

	next, err := checkpoints.GetCheckpoint(context.Background(), "staking")
	require.NoError(t, err)
	assert.Equal(t, uint64(151), next)
}

func TestCrawlResumesFromCheckpoint(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 300, logs: []ethtypes.Log{logAt(120), logAt(250)}}
	checkpoints := newFakeCheckpoints()
	require.NoError(t, checkpoints.AdvanceCheckpoint(context.Background(), "staking", 200))
	sink := &fakeSink{}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	result, err := c.Crawl(context.Background(), Source{Id: "staking", CreationBlock: 100})
	require.NoError(t, err)

	// The log at block 120 is behind the checkpoint and stays untouched.
	assert.Equal(t, uint64(200), result.FromBlock)
	assert.Equal(t, 1, result.TotalEvents)
	require.Len(t, sink.events, 1)
	assert.Equal(t, uint64(250), sink.events[0].Block)
}

func TestCrawlRejectsCheckpointBelowCreationBlock(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 300, logs: []ethtypes.Log{logAt(120)}}
	checkpoints := newFakeCheckpoints()
	require.NoError(t, checkpoints.AdvanceCheckpoint(context.Background(), "staking", 50))
	sink := &fakeSink{}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	_, err := c.Crawl(context.Background(), Source{Id: "staking", CreationBlock: 100})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ArchiveTooDeep)

	// Nothing fetched, stored or advanced.
	assert.Empty(t, datasource.getLogCalls)
	assert.Empty(t, sink.events)
	next, err := checkpoints.GetCheckpoint(context.Background(), "staking")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), next)
}

func TestCrawlWindowing(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 125}
	checkpoints := newFakeCheckpoints()
	sink := &fakeSink{}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	_, err := c.Crawl(context.Background(), Source{Id: "staking", CreationBlock: 0, Window: 50})
	require.NoError(t, err)

	// [0,49] [50,99] [100,125]; the final window is clamped to the head.
	assert.Equal(t, [][2]uint64{{0, 49}, {50, 99}, {100, 125}}, datasource.getLogCalls)

	next, err := checkpoints.GetCheckpoint(context.Background(), "staking")
	require.NoError(t, err)
	assert.Equal(t, uint64(126), next)
}

func TestCrawlNothingToDoWhenCheckpointAhead(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 100}
	checkpoints := newFakeCheckpoints()
	require.NoError(t, checkpoints.AdvanceCheckpoint(context.Background(), "staking", 101))
	sink := &fakeSink{}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	result, err := c.Crawl(context.Background(), Source{Id: "staking"})
	require.NoError(t, err)

	assert.Zero(t, result.TotalEvents)
	assert.Empty(t, datasource.getLogCalls)

	next, err := checkpoints.GetCheckpoint(context.Background(), "staking")
	require.NoError(t, err)
	assert.Equal(t, uint64(101), next)
}

func TestCrawlLatestBlockErrorAbortsBeforeCheckpointMutation(t *testing.T) {
	datasource := &fakeDatasource{latestErr: errors.New("rpc down")}
	checkpoints := newFakeCheckpoints()
	sink := &fakeSink{}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	_, err := c.Crawl(context.Background(), Source{Id: "staking", CreationBlock: 100})
	require.Error(t, err)

	_, err = checkpoints.GetCheckpoint(context.Background(), "staking")
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestCrawlRetriesTransientGetLogsErrors(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 10, logs: []ethtypes.Log{logAt(5)}, failures: 2}
	checkpoints := newFakeCheckpoints()
	sink := &fakeSink{}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	result, err := c.Crawl(context.Background(), Source{Id: "staking", RetryDelay: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalEvents)
	// Two failed attempts plus the successful one, all for the same window.
	require.Len(t, datasource.getLogCalls, 3)
	assert.Equal(t, datasource.getLogCalls[0], datasource.getLogCalls[2])
}

func TestCrawlRetryAbortsOnContextCancel(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 10, failures: 1 << 30}
	checkpoints := newFakeCheckpoints()
	sink := &fakeSink{}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Crawl(ctx, Source{Id: "staking", RetryDelay: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawlDecodeErrorIsFatal(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 10, logs: []ethtypes.Log{logAt(5)}}
	checkpoints := newFakeCheckpoints()
	sink := &fakeSink{}
	decodeFail := func(source Source, log ethtypes.Log) (storedEvent, error) {
		return storedEvent{}, errors.New("unexpected log shape")
	}
	c := New[storedEvent](datasource, checkpoints, sink, decodeFail)

	_, err := c.Crawl(context.Background(), Source{Id: "staking"})
	require.Error(t, err)
	assert.Empty(t, sink.events)

	// Checkpoint must not advance past unprocessed logs.
	_, err = checkpoints.GetCheckpoint(context.Background(), "staking")
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestCrawlCheckpointNotAdvancedOnStoreFailure(t *testing.T) {
	datasource := &fakeDatasource{latestBlock: 10, logs: []ethtypes.Log{logAt(5)}}
	checkpoints := newFakeCheckpoints()
	sink := &fakeSink{err: errors.New("db down")}
	c := New[storedEvent](datasource, checkpoints, sink, decodeStored)

	_, err := c.Crawl(context.Background(), Source{Id: "staking"})
	require.Error(t, err)

	_, err = checkpoints.GetCheckpoint(context.Background(), "staking")
	assert.ErrorIs(t, err, errs.NotFound)
}
