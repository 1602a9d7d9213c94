package datasources

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ChainLogSource provides filtered event-log queries against an EVM chain.
// Implementations must be safe for concurrent use.
type ChainLogSource interface {
	Name() string

	// GetLatestBlockNumber returns the current chain head height.
	GetLatestBlockNumber(ctx context.Context) (uint64, error)

	// GetLogs returns all logs emitted by the given contract with the given
	// topic0 within [fromBlock, toBlock], ordered by ascending block number.
	GetLogs(ctx context.Context, address common.Address, topic0 common.Hash, fromBlock, toBlock uint64) ([]ethtypes.Log, error)

	// GetTransactionSender returns the sender of the given transaction.
	// Used only by backfill paths, never by the crawl loop.
	GetTransactionSender(ctx context.Context, txHash common.Hash) (common.Address, error)
}
