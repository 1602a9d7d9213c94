package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type pointsRecord struct {
	User         string                     `json:"user"`
	Group        string                     `json:"group,omitempty"`
	Rank         int                        `json:"rank,omitempty"`
	GroupBoost   decimal.Decimal            `json:"groupBoost"`
	BoostFactors map[string]decimal.Decimal `json:"boostFactors"`
	Multiplier   decimal.Decimal            `json:"multiplier"`
	DailyBase    map[string]decimal.Decimal `json:"dailyBase"`
	DailyPoints  map[string]decimal.Decimal `json:"dailyPoints"`
	Cumulative   map[string]decimal.Decimal `json:"cumulative"`
	TotalPoints  decimal.Decimal            `json:"totalPoints"`
}

type pointsSnapshot struct {
	Id          string         `json:"id"`
	Series      string         `json:"series"`
	BlockHeight uint64         `json:"blockHeight"`
	CreatedAt   time.Time      `json:"createdAt"`
	Records     []pointsRecord `json:"records"`
}

func newPointsSnapshot(snapshot *entity.PointsSnapshot) pointsSnapshot {
	records := make([]pointsRecord, 0, len(snapshot.Records))
	for _, record := range snapshot.Records {
		out := pointsRecord{
			User:         record.User.Hex(),
			GroupBoost:   record.GroupBoost,
			BoostFactors: categoryMap(record.BoostFactors),
			Multiplier:   record.Multiplier,
			DailyBase:    categoryMap(record.DailyBase),
			DailyPoints:  categoryMap(record.DailyPoints),
			Cumulative:   categoryMap(record.Cumulative),
			TotalPoints:  record.TotalPoints,
		}
		if record.Rank > 0 {
			out.Group = record.Group.Hex()
			out.Rank = record.Rank
		}
		records = append(records, out)
	}
	return pointsSnapshot{
		Id:          snapshot.Id.String(),
		Series:      snapshot.Series,
		BlockHeight: snapshot.BlockHeight,
		CreatedAt:   snapshot.CreatedAt,
		Records:     records,
	}
}

func categoryMap(in map[entity.RewardCategory]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for category, value := range in {
		out[string(category)] = value
	}
	return out
}

type getLatestSnapshotResponse = HttpResponse[pointsSnapshot]

func (h *HttpHandler) GetLatestSnapshot(ctx *fiber.Ctx) (err error) {
	snapshot, err := h.usecase.LatestSnapshot(ctx.UserContext())
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("snapshot not found")
		}
		return errors.Wrap(err, "error during LatestSnapshot")
	}

	resp := getLatestSnapshotResponse{
		Result: lo.ToPtr(newPointsSnapshot(snapshot)),
	}
	return errors.WithStack(ctx.JSON(resp))
}
