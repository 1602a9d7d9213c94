package crawler

import (
	"context"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/core/datasources"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultWindow is the default crawl window size in blocks. Sources with
	// dense logs should configure a smaller window to stay under provider
	// response-size limits.
	DefaultWindow uint64 = 50_000

	// DefaultRetryDelay is the pause between retries of a failed log query.
	DefaultRetryDelay = 5 * time.Second
)

// Source identifies one (contract address, event signature) pair being
// crawled. Immutable once registered.
type Source struct {
	Id            string
	Address       common.Address
	Topic0        common.Hash
	CreationBlock uint64
	Window        uint64        // 0 means DefaultWindow
	RetryDelay    time.Duration // 0 means DefaultRetryDelay
}

// Decoder decodes a raw log from the given source into a domain event.
// A decode failure indicates a misconfigured source and is fatal to the run.
type Decoder[T any] func(source Source, log ethtypes.Log) (T, error)

// CheckpointStore persists, per source, the next block to crawl from.
type CheckpointStore interface {
	// GetCheckpoint returns the next crawl block for the source.
	// Returns errs.NotFound if the source has never been crawled.
	GetCheckpoint(ctx context.Context, sourceId string) (uint64, error)

	// AdvanceCheckpoint moves the checkpoint forward to nextBlock. It must
	// reject backward moves with errs.ConflictSetting.
	AdvanceCheckpoint(ctx context.Context, sourceId string, nextBlock uint64) error
}

// Sink receives decoded events. StoreEvents must tolerate re-delivery of
// already stored events so that a crash before a checkpoint advance cannot
// corrupt state on retry.
type Sink[T any] interface {
	StoreEvents(ctx context.Context, events []T) error
}

// Result summarizes one completed crawl run.
type Result struct {
	SourceId    string
	FromBlock   uint64
	ToBlock     uint64
	TotalEvents int
}

// Crawler pulls events in bounded block windows, decodes them, persists them
// and advances the checkpoint. Crawls of the same source are serialized:
// a concurrent call for an in-flight source observes the running crawl's
// completion instead of starting a second one.
type Crawler[T any] struct {
	datasource  datasources.ChainLogSource
	checkpoints CheckpointStore
	sink        Sink[T]
	decode      Decoder[T]

	inflight singleflight.Group
}

func New[T any](datasource datasources.ChainLogSource, checkpoints CheckpointStore, sink Sink[T], decode Decoder[T]) *Crawler[T] {
	return &Crawler[T]{
		datasource:  datasource,
		checkpoints: checkpoints,
		sink:        sink,
		decode:      decode,
	}
}

// Crawl runs one crawl cycle for the source, up to the chain head observed at
// the start of the run. Safe to invoke concurrently with itself for the same
// source.
func (c *Crawler[T]) Crawl(ctx context.Context, source Source) (Result, error) {
	result, err, _ := c.inflight.Do(source.Id, func() (any, error) {
		return c.crawl(ctx, source)
	})
	if err != nil {
		return Result{}, errors.WithStack(err)
	}
	return result.(Result), nil
}

func (c *Crawler[T]) crawl(ctx context.Context, source Source) (Result, error) {
	ctx = logger.WithContext(ctx, slogx.String("source", source.Id))

	nextBlock, err := c.checkpoints.GetCheckpoint(ctx, source.Id)
	if err != nil {
		if !errors.Is(err, errs.NotFound) {
			return Result{}, errors.Wrap(err, "failed to get checkpoint")
		}
		nextBlock = source.CreationBlock
	}
	if nextBlock < source.CreationBlock {
		// A stored checkpoint below the creation block means the source was
		// reset into a range the contract never emitted in. Querying it
		// would hammer archive depth for nothing; surface it instead.
		return Result{}, errors.Wrapf(errs.ArchiveTooDeep, "checkpoint %d is below source creation block %d", nextBlock, source.CreationBlock)
	}

	// The chain head is read once per run and becomes the fixed upper bound;
	// a moving target would leave the run without a completion criterion.
	// An error here aborts the run before any checkpoint mutation.
	latestBlock, err := c.datasource.GetLatestBlockNumber(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to get latest block number")
	}

	result := Result{
		SourceId:  source.Id,
		FromBlock: nextBlock,
		ToBlock:   latestBlock,
	}
	if nextBlock > latestBlock {
		logger.DebugContext(ctx, "Checkpoint is ahead of chain head, nothing to crawl",
			slogx.Uint64("next_block", nextBlock),
			slogx.Uint64("latest_block", latestBlock),
		)
		return result, nil
	}

	window := utils.Default(source.Window, DefaultWindow)
	startAt := time.Now()
	logger.InfoContext(ctx, "Starting crawl run",
		slogx.Uint64("from", nextBlock),
		slogx.Uint64("to", latestBlock),
		slogx.Uint64("window", window),
	)

	for nextBlock <= latestBlock {
		toBlock := nextBlock + window - 1
		if toBlock > latestBlock {
			toBlock = latestBlock
		}

		logs, err := c.fetchLogs(ctx, source, nextBlock, toBlock)
		if err != nil {
			return Result{}, errors.WithStack(err)
		}

		events := make([]T, 0, len(logs))
		for _, log := range logs {
			event, err := c.decode(source, log)
			if err != nil {
				// Schema shapes are stable per source. A decode failure is a
				// configuration bug and must surface, not be swallowed.
				return Result{}, errors.Wrapf(err, "failed to decode log, block: %d, tx: %s, log index: %d", log.BlockNumber, log.TxHash, log.Index)
			}
			events = append(events, event)
		}

		if len(events) > 0 {
			if err := c.sink.StoreEvents(ctx, events); err != nil {
				return Result{}, errors.Wrapf(err, "failed to store events, from: %d, to: %d", nextBlock, toBlock)
			}
		}

		// Only after the window's logs are durably stored.
		if err := c.checkpoints.AdvanceCheckpoint(ctx, source.Id, toBlock+1); err != nil {
			return Result{}, errors.Wrapf(err, "failed to advance checkpoint to %d", toBlock+1)
		}

		result.TotalEvents += len(events)
		nextBlock = toBlock + 1
	}

	logger.InfoContext(ctx, "Crawl run completed",
		slogx.Uint64("checkpoint", nextBlock),
		slogx.Int("total_events", result.TotalEvents),
		slogx.Duration("duration", time.Since(startAt)),
	)
	return result, nil
}

// fetchLogs retries the identical window indefinitely on transient source
// errors. Abandoning the run would silently truncate history; a wedged
// provider is surfaced through logs and aborted by killing the process.
func (c *Crawler[T]) fetchLogs(ctx context.Context, source Source, fromBlock, toBlock uint64) ([]ethtypes.Log, error) {
	retryDelay := utils.Default(source.RetryDelay, DefaultRetryDelay)
	for attempt := 1; ; attempt++ {
		logs, err := c.datasource.GetLogs(ctx, source.Address, source.Topic0, fromBlock, toBlock)
		if err == nil {
			return logs, nil
		}

		logger.WarnContext(ctx, "Transient error while fetching logs, retrying same window",
			slogx.Error(err),
			slogx.Uint64("from", fromBlock),
			slogx.Uint64("to", toBlock),
			slogx.Int("attempt", attempt),
		)

		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}
