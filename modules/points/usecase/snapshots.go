package usecase

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/modules/points/entity"
)

// csvSchemaVersion is bumped whenever the export column set changes, so
// downstream consumers can detect incompatible files.
const csvSchemaVersion = "1"

// LatestSnapshot returns the newest snapshot of the series.
func (u *Usecase) LatestSnapshot(ctx context.Context) (*entity.PointsSnapshot, error) {
	snapshot, err := u.snapshotDg.GetLatestSnapshot(ctx, u.series)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil, errors.WithStack(err)
		}
		return nil, errors.Wrap(err, "failed to get latest snapshot")
	}
	return snapshot, nil
}

// SnapshotRange returns the series' snapshots created within [from, to],
// oldest first.
func (u *Usecase) SnapshotRange(ctx context.Context, from, to time.Time) ([]*entity.PointsSnapshot, error) {
	if from.After(to) {
		return nil, errors.WithStack(errs.InvalidArgument)
	}
	snapshots, err := u.snapshotDg.GetSnapshotsByRange(ctx, u.series, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get snapshots by range")
	}
	return snapshots, nil
}

// ExportSnapshotCSV writes the latest snapshot's records as CSV. The column
// set is fixed per schema version; category columns follow the canonical
// category order.
func (u *Usecase) ExportSnapshotCSV(ctx context.Context, w io.Writer) error {
	snapshot, err := u.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	return errors.WithStack(encodeSnapshotCSV(w, snapshot))
}

func encodeSnapshotCSV(w io.Writer, snapshot *entity.PointsSnapshot) error {
	cw := csv.NewWriter(w)

	header := []string{
		"schema_version", "series", "block_height",
		"user", "group", "rank", "group_boost", "multiplier",
	}
	for _, category := range entity.Categories {
		header = append(header,
			"boost_factor_"+string(category),
			"daily_base_"+string(category),
			"daily_points_"+string(category),
			"cumulative_"+string(category),
		)
	}
	header = append(header, "total_points")
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}

	for _, record := range snapshot.Records {
		row := []string{
			csvSchemaVersion,
			snapshot.Series,
			strconv.FormatUint(snapshot.BlockHeight, 10),
			record.User.Hex(),
			record.Group.Hex(),
			strconv.Itoa(record.Rank),
			record.GroupBoost.String(),
			record.Multiplier.String(),
		}
		for _, category := range entity.Categories {
			row = append(row,
				record.BoostFactors[category].String(),
				record.DailyBase[category].String(),
				record.DailyPoints[category].String(),
				record.Cumulative[category].String(),
			)
		}
		row = append(row, record.TotalPoints.String())
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "failed to write csv row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush csv")
}
