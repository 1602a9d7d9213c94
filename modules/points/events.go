package points

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/core/crawler"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	typeAddress = lo.Must(abi.NewType("address", "", nil))
	typeUint256 = lo.Must(abi.NewType("uint256", "", nil))
	typeString  = lo.Must(abi.NewType("string", "", nil))
)

func newEvent(name string, inputs abi.Arguments) abi.Event {
	return abi.NewEvent(name, name, false, inputs)
}

func amountOnly() abi.Arguments {
	return abi.Arguments{
		{Name: "user", Type: typeAddress, Indexed: true},
		{Name: "amount", Type: typeUint256},
	}
}

// abiEvents is the closed registry of event shapes the crawler understands,
// one per EventKind. The stake event additionally carries the user-submitted
// referral token.
var abiEvents = map[entity.EventKind]abi.Event{
	entity.EventKindStake: newEvent("Staked", abi.Arguments{
		{Name: "user", Type: typeAddress, Indexed: true},
		{Name: "amount", Type: typeUint256},
		{Name: "referral", Type: typeString},
	}),
	entity.EventKindUnstake:       newEvent("Unstaked", amountOnly()),
	entity.EventKindLPAdd:         newEvent("LiquidityAdded", amountOnly()),
	entity.EventKindLPRemove:      newEvent("LiquidityRemoved", amountOnly()),
	entity.EventKindSupply:        newEvent("Supplied", amountOnly()),
	entity.EventKindRedeem:        newEvent("Redeemed", amountOnly()),
	entity.EventKindVaultDeposit:  newEvent("VaultDeposited", amountOnly()),
	entity.EventKindVaultWithdraw: newEvent("VaultWithdrawn", amountOnly()),
}

// EventTopic returns the topic0 hash for the kind's event signature.
func EventTopic(kind entity.EventKind) (common.Hash, error) {
	event, ok := abiEvents[kind]
	if !ok {
		return common.Hash{}, errors.Wrapf(errs.Unsupported, "no abi event for kind %q", kind)
	}
	return event.ID, nil
}

// NewEventDecoder returns the crawler decoder for the kind. Decode failures
// are fatal to a crawl run: event shapes are stable per source, so a failure
// indicates a misconfigured source, not bad data.
func NewEventDecoder(kind entity.EventKind) (crawler.Decoder[*entity.Event], error) {
	event, ok := abiEvents[kind]
	if !ok {
		return nil, errors.Wrapf(errs.Unsupported, "no abi event for kind %q", kind)
	}

	return func(source crawler.Source, log ethtypes.Log) (*entity.Event, error) {
		if len(log.Topics) < 2 {
			return nil, errors.Wrapf(errs.InvalidArgument, "expected indexed user topic, got %d topics", len(log.Topics))
		}
		if log.Topics[0] != event.ID {
			return nil, errors.Wrapf(errs.InvalidArgument, "unexpected topic0 %s, want %s", log.Topics[0], event.ID)
		}

		values, err := event.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unpack log data")
		}

		amount, ok := values[0].(*big.Int)
		if !ok {
			return nil, errors.Wrapf(errs.InvalidArgument, "amount is %T, want *big.Int", values[0])
		}

		var referral string
		if len(values) > 1 {
			referral, ok = values[1].(string)
			if !ok {
				return nil, errors.Wrapf(errs.InvalidArgument, "referral is %T, want string", values[1])
			}
		}

		return &entity.Event{
			SourceId:     source.Id,
			Kind:         kind,
			BlockNumber:  log.BlockNumber,
			TxHash:       log.TxHash,
			LogIndex:     log.Index,
			User:         common.BytesToAddress(log.Topics[1].Bytes()),
			Amount:       decimal.NewFromBigInt(amount, 0),
			ReferralCode: referral,
		}, nil
	}, nil
}
