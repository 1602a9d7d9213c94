package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/modules/points/datagateway"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/shopspring/decimal"
)

var _ datagateway.EventDataGateway = (*Repository)(nil)

// CreateEvents appends decoded events. Re-crawled logs hit the unique
// (source_id, tx_hash, log_index) key and are skipped, so crawling the same
// range twice produces the same event set.
func (r *Repository) CreateEvents(ctx context.Context, events []*entity.Event) error {
	batch := &pgx.Batch{}
	for _, event := range events {
		var sender *string
		if event.Sender != nil {
			s := event.Sender.Hex()
			sender = &s
		}
		batch.Queue(`
			INSERT INTO points_events (source_id, kind, block_number, tx_hash, log_index, user_address, amount, referral_code, sender_address)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, NULLIF($8, ''), $9)
			ON CONFLICT (source_id, tx_hash, log_index) DO NOTHING
		`, event.SourceId, event.Kind.String(), int64(event.BlockNumber), event.TxHash.Hex(), int32(event.LogIndex), event.User.Hex(), event.Amount.String(), event.ReferralCode, sender)
	}

	results := r.sendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "failed to insert event")
		}
	}
	return nil
}

func (r *Repository) UpdateEventSender(ctx context.Context, sourceId string, txHash common.Hash, logIndex uint, sender common.Address) error {
	_, err := r.queryable().Exec(ctx, `
		UPDATE points_events SET sender_address = $4
		WHERE source_id = $1 AND tx_hash = $2 AND log_index = $3
	`, sourceId, txHash.Hex(), int32(logIndex), sender.Hex())
	if err != nil {
		return errors.Wrap(err, "failed to update event sender")
	}
	return nil
}

func (r *Repository) GetMaxBlockNumber(ctx context.Context) (uint64, error) {
	var max *int64
	err := r.queryable().QueryRow(ctx, `SELECT MAX(block_number) FROM points_events`).Scan(&max)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get max block number")
	}
	if max == nil {
		return 0, errors.Wrap(errs.NotFound, "event store is empty")
	}
	return uint64(*max), nil
}

func (r *Repository) GetCategoryBalances(ctx context.Context, upTo uint64) (map[entity.RewardCategory]map[common.Address]decimal.Decimal, error) {
	rows, err := r.queryable().Query(ctx, `
		SELECT kind, user_address, SUM(amount)::text
		FROM points_events
		WHERE block_number <= $1
		GROUP BY kind, user_address
	`, int64(upTo))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query category balances")
	}
	defer rows.Close()

	balances := make(map[entity.RewardCategory]map[common.Address]decimal.Decimal)
	if err := foldKindSums(rows, func(kind entity.EventKind, user common.Address, sum decimal.Decimal) {
		category := kind.Category()
		if balances[category] == nil {
			balances[category] = make(map[common.Address]decimal.Decimal)
		}
		if kind.IsInflow() {
			balances[category][user] = balances[category][user].Add(sum)
		} else {
			balances[category][user] = balances[category][user].Sub(sum)
		}
	}); err != nil {
		return nil, errors.WithStack(err)
	}
	return balances, nil
}

func (r *Repository) GetCategoryFlows(ctx context.Context, from, to uint64) (map[entity.RewardCategory]map[common.Address]decimal.Decimal, error) {
	rows, err := r.queryable().Query(ctx, `
		SELECT kind, user_address, SUM(amount)::text
		FROM points_events
		WHERE block_number >= $1 AND block_number <= $2
		GROUP BY kind, user_address
	`, int64(from), int64(to))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query category flows")
	}
	defer rows.Close()

	flows := make(map[entity.RewardCategory]map[common.Address]decimal.Decimal)
	if err := foldKindSums(rows, func(kind entity.EventKind, user common.Address, sum decimal.Decimal) {
		category := kind.Category()
		if flows[category] == nil {
			flows[category] = make(map[common.Address]decimal.Decimal)
		}
		if kind.IsInflow() {
			flows[category][user] = flows[category][user].Add(sum)
		} else {
			flows[category][user] = flows[category][user].Sub(sum)
		}
	}); err != nil {
		return nil, errors.WithStack(err)
	}
	return flows, nil
}

func (r *Repository) GetStakeDeposits(ctx context.Context, upTo uint64) (map[common.Address]decimal.Decimal, error) {
	rows, err := r.queryable().Query(ctx, `
		SELECT user_address, SUM(amount)::text
		FROM points_events
		WHERE kind = $1 AND block_number <= $2
		GROUP BY user_address
	`, entity.EventKindStake.String(), int64(upTo))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query stake deposits")
	}
	defer rows.Close()

	deposits := make(map[common.Address]decimal.Decimal)
	for rows.Next() {
		var userHex, sumStr string
		if err := rows.Scan(&userHex, &sumStr); err != nil {
			return nil, errors.Wrap(err, "failed to scan stake deposit row")
		}
		sum, err := decimal.NewFromString(sumStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid amount sum %q", sumStr)
		}
		deposits[common.HexToAddress(userHex)] = sum
	}
	return deposits, errors.Wrap(rows.Err(), "failed to iterate stake deposit rows")
}

func (r *Repository) GetReferralSubmissions(ctx context.Context) ([]entity.ReferralSubmission, error) {
	rows, err := r.queryable().Query(ctx, `
		SELECT user_address, referral_code, block_number
		FROM points_events
		WHERE referral_code IS NOT NULL
		ORDER BY block_number ASC, log_index ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query referral submissions")
	}
	defer rows.Close()

	var submissions []entity.ReferralSubmission
	for rows.Next() {
		var userHex, code string
		var blockNumber int64
		if err := rows.Scan(&userHex, &code, &blockNumber); err != nil {
			return nil, errors.Wrap(err, "failed to scan referral submission row")
		}
		submissions = append(submissions, entity.ReferralSubmission{
			User:        common.HexToAddress(userHex),
			Code:        code,
			BlockNumber: uint64(blockNumber),
		})
	}
	return submissions, errors.Wrap(rows.Err(), "failed to iterate referral submission rows")
}

func (r *Repository) GetEventsMissingSender(ctx context.Context, limit int32) ([]*entity.Event, error) {
	rows, err := r.queryable().Query(ctx, `
		SELECT source_id, kind, block_number, tx_hash, log_index, user_address, amount::text, COALESCE(referral_code, '')
		FROM points_events
		WHERE sender_address IS NULL
		ORDER BY block_number ASC, log_index ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query events missing sender")
	}
	defer rows.Close()

	var events []*entity.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		events = append(events, event)
	}
	return events, errors.Wrap(rows.Err(), "failed to iterate event rows")
}

func scanEvent(rows pgx.Rows) (*entity.Event, error) {
	var (
		sourceId, kind, txHash, userHex, amountStr, referralCode string
		blockNumber                                              int64
		logIndex                                                 int32
	)
	if err := rows.Scan(&sourceId, &kind, &blockNumber, &txHash, &logIndex, &userHex, &amountStr, &referralCode); err != nil {
		return nil, errors.Wrap(err, "failed to scan event row")
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", amountStr)
	}
	return &entity.Event{
		SourceId:     sourceId,
		Kind:         entity.EventKind(kind),
		BlockNumber:  uint64(blockNumber),
		TxHash:       common.HexToHash(txHash),
		LogIndex:     uint(logIndex),
		User:         common.HexToAddress(userHex),
		Amount:       amount,
		ReferralCode: referralCode,
	}, nil
}

func foldKindSums(rows pgx.Rows, fold func(kind entity.EventKind, user common.Address, sum decimal.Decimal)) error {
	for rows.Next() {
		var kindStr, userHex, sumStr string
		if err := rows.Scan(&kindStr, &userHex, &sumStr); err != nil {
			return errors.Wrap(err, "failed to scan aggregate row")
		}
		kind := entity.EventKind(kindStr)
		if !kind.IsValid() {
			return errors.Wrapf(errs.InternalError, "unknown event kind %q in event store", kindStr)
		}
		sum, err := decimal.NewFromString(sumStr)
		if err != nil {
			return errors.Wrapf(err, "invalid amount sum %q", sumStr)
		}
		fold(kind, common.HexToAddress(userHex), sum)
	}
	return errors.Wrap(rows.Err(), "failed to iterate aggregate rows")
}
