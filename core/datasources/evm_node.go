package datasources

import (
	"context"
	"math/big"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pointsflow/points-indexer/common/errs"
)

const defaultRequestTimeout = 30 * time.Second

// Make sure to implement the ChainLogSource interface
var _ ChainLogSource = (*EVMNodeDatasource)(nil)

// EVMNodeDatasource is a ChainLogSource backed by an EVM JSON-RPC node.
// Every call carries a bounded timeout; callers own the retry policy.
type EVMNodeDatasource struct {
	client         *ethclient.Client
	chainId        *big.Int
	requestTimeout time.Duration
}

type EVMNodeOptions struct {
	// RequestTimeout bounds each RPC call. Default is 30s.
	RequestTimeout time.Duration
}

func NewEVMNode(ctx context.Context, rpcURL string, opts ...EVMNodeOptions) (*EVMNodeDatasource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "can't connect to EVM node %q", rpcURL)
	}

	chainId, err := client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't get chain id from EVM node")
	}

	var opt EVMNodeOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	return &EVMNodeDatasource{
		client:         client,
		chainId:        chainId,
		requestTimeout: utils.Default(opt.RequestTimeout, defaultRequestTimeout),
	}, nil
}

func (d *EVMNodeDatasource) Name() string {
	return "evm-node"
}

// ChainId returns the chain id reported by the node at connect time.
func (d *EVMNodeDatasource) ChainId() *big.Int {
	return new(big.Int).Set(d.chainId)
}

func (d *EVMNodeDatasource) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.requestTimeout)
	defer cancel()

	height, err := d.client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get latest block number")
	}
	return height, nil
}

func (d *EVMNodeDatasource) GetLogs(ctx context.Context, address common.Address, topic0 common.Hash, fromBlock, toBlock uint64) ([]ethtypes.Log, error) {
	ctx, cancel := context.WithTimeout(ctx, d.requestTimeout)
	defer cancel()

	logs, err := d.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{topic0}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get logs, from: %d, to: %d", fromBlock, toBlock)
	}
	return logs, nil
}

func (d *EVMNodeDatasource) GetTransactionSender(ctx context.Context, txHash common.Hash) (common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, d.requestTimeout)
	defer cancel()

	tx, pending, err := d.client.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return common.Address{}, errors.Wrapf(errs.NotFound, "transaction %s not found", txHash)
		}
		return common.Address{}, errors.Wrapf(err, "failed to get transaction %s", txHash)
	}
	if pending {
		return common.Address{}, errors.Wrapf(errs.NotFound, "transaction %s is still pending", txHash)
	}

	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(d.chainId), tx)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "failed to recover sender of transaction %s", txHash)
	}
	return sender, nil
}
