package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/modules/points/datagateway"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/shopspring/decimal"
)

var _ datagateway.SnapshotDataGateway = (*Repository)(nil)

const uniqueViolationCode = "23505"

// CreateSnapshot persists the snapshot and all its records in one
// transaction. A duplicate (series, block_height) aborts without writes.
func (r *Repository) CreateSnapshot(ctx context.Context, snapshot *entity.PointsSnapshot) error {
	repo, err := r.Begin(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = repo.Rollback(ctx) }()

	_, err = repo.queryable().Exec(ctx, `
		INSERT INTO points_snapshots (id, series, block_height, created_at)
		VALUES ($1, $2, $3, $4)
	`, snapshot.Id, snapshot.Series, int64(snapshot.BlockHeight), snapshot.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return errors.Wrapf(errs.Duplicate, "snapshot for series %q at height %d already exists", snapshot.Series, snapshot.BlockHeight)
		}
		return errors.Wrap(err, "failed to insert snapshot")
	}

	batch := &pgx.Batch{}
	for _, record := range snapshot.Records {
		boostFactors, err := marshalDecimalMap(record.BoostFactors)
		if err != nil {
			return errors.WithStack(err)
		}
		dailyBase, err := marshalDecimalMap(record.DailyBase)
		if err != nil {
			return errors.WithStack(err)
		}
		dailyPoints, err := marshalDecimalMap(record.DailyPoints)
		if err != nil {
			return errors.WithStack(err)
		}
		cumulative, err := marshalDecimalMap(record.Cumulative)
		if err != nil {
			return errors.WithStack(err)
		}

		var group *string
		if record.Rank > 0 {
			g := record.Group.Hex()
			group = &g
		}
		batch.Queue(`
			INSERT INTO points_records (snapshot_id, user_address, group_id, rank, group_boost, multiplier, boost_factors, daily_base, daily_points, cumulative, total_points)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11::numeric)
		`, snapshot.Id, record.User.Hex(), group, int32(record.Rank), record.GroupBoost.String(), record.Multiplier.String(), boostFactors, dailyBase, dailyPoints, cumulative, record.TotalPoints.String())
	}

	results := repo.sendBatch(ctx, batch)
	for range snapshot.Records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return errors.Wrap(err, "failed to insert snapshot record")
		}
	}
	if err := results.Close(); err != nil {
		return errors.Wrap(err, "failed to close snapshot batch")
	}

	return errors.WithStack(repo.Commit(ctx))
}

func (r *Repository) GetLatestSnapshot(ctx context.Context, series string) (*entity.PointsSnapshot, error) {
	snapshot := &entity.PointsSnapshot{Series: series}
	var blockHeight int64
	err := r.queryable().QueryRow(ctx, `
		SELECT id, block_height, created_at
		FROM points_snapshots
		WHERE series = $1
		ORDER BY created_at DESC, block_height DESC
		LIMIT 1
	`, series).Scan(&snapshot.Id, &blockHeight, &snapshot.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(errs.NotFound, "no snapshot for series %q", series)
		}
		return nil, errors.Wrap(err, "failed to get latest snapshot")
	}
	snapshot.BlockHeight = uint64(blockHeight)

	snapshot.Records, err = r.getSnapshotRecords(ctx, snapshot.Id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return snapshot, nil
}

func (r *Repository) GetSnapshotsByRange(ctx context.Context, series string, from, to time.Time) ([]*entity.PointsSnapshot, error) {
	rows, err := r.queryable().Query(ctx, `
		SELECT id, block_height, created_at
		FROM points_snapshots
		WHERE series = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC
	`, series, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query snapshots")
	}
	defer rows.Close()

	var snapshots []*entity.PointsSnapshot
	for rows.Next() {
		snapshot := &entity.PointsSnapshot{Series: series}
		var blockHeight int64
		if err := rows.Scan(&snapshot.Id, &blockHeight, &snapshot.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan snapshot row")
		}
		snapshot.BlockHeight = uint64(blockHeight)
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate snapshot rows")
	}

	for _, snapshot := range snapshots {
		snapshot.Records, err = r.getSnapshotRecords(ctx, snapshot.Id)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return snapshots, nil
}

func (r *Repository) getSnapshotRecords(ctx context.Context, snapshotId uuid.UUID) ([]*entity.PointsRecord, error) {
	rows, err := r.queryable().Query(ctx, `
		SELECT user_address, group_id, rank, group_boost::text, multiplier::text, boost_factors, daily_base, daily_points, cumulative, total_points::text
		FROM points_records
		WHERE snapshot_id = $1
		ORDER BY user_address ASC
	`, snapshotId)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query snapshot records")
	}
	defer rows.Close()

	var records []*entity.PointsRecord
	for rows.Next() {
		record, err := scanPointsRecord(rows)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		records = append(records, record)
	}
	return records, errors.Wrap(rows.Err(), "failed to iterate snapshot record rows")
}

func (r *Repository) CreateGroupRanking(ctx context.Context, ranking *entity.GroupRanking) error {
	repo, err := r.Begin(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = repo.Rollback(ctx) }()

	_, err = repo.queryable().Exec(ctx, `
		INSERT INTO points_group_rankings (id, created_at) VALUES ($1, $2)
	`, ranking.Id, ranking.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to insert group ranking")
	}

	batch := &pgx.Batch{}
	for _, group := range ranking.Groups {
		batch.Queue(`
			INSERT INTO points_groups (ranking_id, group_id, total_stake, rank, current_boost)
			VALUES ($1, $2, $3::numeric, $4, $5::numeric)
		`, ranking.Id, group.GroupId.Hex(), group.TotalStake.String(), int32(group.Rank), group.CurrentBoost.String())
	}

	results := repo.sendBatch(ctx, batch)
	for range ranking.Groups {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return errors.Wrap(err, "failed to insert group")
		}
	}
	if err := results.Close(); err != nil {
		return errors.Wrap(err, "failed to close group batch")
	}

	return errors.WithStack(repo.Commit(ctx))
}

func (r *Repository) GetLatestGroupRanking(ctx context.Context) (*entity.GroupRanking, error) {
	ranking := &entity.GroupRanking{}
	err := r.queryable().QueryRow(ctx, `
		SELECT id, created_at FROM points_group_rankings ORDER BY created_at DESC LIMIT 1
	`).Scan(&ranking.Id, &ranking.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(errs.NotFound, "no group ranking exists")
		}
		return nil, errors.Wrap(err, "failed to get latest group ranking")
	}

	rows, err := r.queryable().Query(ctx, `
		SELECT group_id, total_stake::text, rank, current_boost::text
		FROM points_groups
		WHERE ranking_id = $1
		ORDER BY rank ASC
	`, ranking.Id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query groups")
	}
	defer rows.Close()

	for rows.Next() {
		var groupHex, stakeStr, boostStr string
		var rank int32
		if err := rows.Scan(&groupHex, &stakeStr, &rank, &boostStr); err != nil {
			return nil, errors.Wrap(err, "failed to scan group row")
		}
		stake, err := decimal.NewFromString(stakeStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid total stake %q", stakeStr)
		}
		boost, err := decimal.NewFromString(boostStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid boost %q", boostStr)
		}
		ranking.Groups = append(ranking.Groups, &entity.Group{
			GroupId:      common.HexToAddress(groupHex),
			TotalStake:   stake,
			Rank:         int(rank),
			CurrentBoost: boost,
		})
	}
	return ranking, errors.Wrap(rows.Err(), "failed to iterate group rows")
}

func scanPointsRecord(rows pgx.Rows) (*entity.PointsRecord, error) {
	var (
		userHex, groupBoostStr, multiplierStr, totalStr  string
		groupHex                                         *string
		rank                                             int32
		boostFactors, dailyBase, dailyPoints, cumulative []byte
	)
	if err := rows.Scan(&userHex, &groupHex, &rank, &groupBoostStr, &multiplierStr, &boostFactors, &dailyBase, &dailyPoints, &cumulative, &totalStr); err != nil {
		return nil, errors.Wrap(err, "failed to scan points record row")
	}

	record := &entity.PointsRecord{
		User: common.HexToAddress(userHex),
		Rank: int(rank),
	}
	if groupHex != nil {
		record.Group = common.HexToAddress(*groupHex)
	}

	var err error
	if record.GroupBoost, err = decimal.NewFromString(groupBoostStr); err != nil {
		return nil, errors.Wrapf(err, "invalid group boost %q", groupBoostStr)
	}
	if record.Multiplier, err = decimal.NewFromString(multiplierStr); err != nil {
		return nil, errors.Wrapf(err, "invalid multiplier %q", multiplierStr)
	}
	if record.TotalPoints, err = decimal.NewFromString(totalStr); err != nil {
		return nil, errors.Wrapf(err, "invalid total points %q", totalStr)
	}
	if record.BoostFactors, err = unmarshalDecimalMap(boostFactors); err != nil {
		return nil, errors.WithStack(err)
	}
	if record.DailyBase, err = unmarshalDecimalMap(dailyBase); err != nil {
		return nil, errors.WithStack(err)
	}
	if record.DailyPoints, err = unmarshalDecimalMap(dailyPoints); err != nil {
		return nil, errors.WithStack(err)
	}
	if record.Cumulative, err = unmarshalDecimalMap(cumulative); err != nil {
		return nil, errors.WithStack(err)
	}
	return record, nil
}

func marshalDecimalMap(m map[entity.RewardCategory]decimal.Decimal) ([]byte, error) {
	if m == nil {
		m = map[entity.RewardCategory]decimal.Decimal{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal decimal map")
	}
	return data, nil
}

func unmarshalDecimalMap(data []byte) (map[entity.RewardCategory]decimal.Decimal, error) {
	m := make(map[entity.RewardCategory]decimal.Decimal)
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal decimal map")
	}
	return m, nil
}
