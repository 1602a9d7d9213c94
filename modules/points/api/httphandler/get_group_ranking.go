package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type group struct {
	GroupId      string          `json:"groupId"`
	TotalStake   decimal.Decimal `json:"totalStake"`
	Rank         int             `json:"rank"`
	CurrentBoost decimal.Decimal `json:"currentBoost"`
}

type getGroupRankingResult struct {
	Id        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Groups    []group   `json:"groups"`
}

type getGroupRankingResponse = HttpResponse[getGroupRankingResult]

func (h *HttpHandler) GetGroupRanking(ctx *fiber.Ctx) (err error) {
	ranking, err := h.usecase.LatestGroupRanking(ctx.UserContext())
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("group ranking not found")
		}
		return errors.Wrap(err, "error during LatestGroupRanking")
	}

	groups := make([]group, 0, len(ranking.Groups))
	for _, g := range ranking.Groups {
		groups = append(groups, group{
			GroupId:      g.GroupId.Hex(),
			TotalStake:   g.TotalStake,
			Rank:         g.Rank,
			CurrentBoost: g.CurrentBoost,
		})
	}
	resp := getGroupRankingResponse{
		Result: lo.ToPtr(getGroupRankingResult{
			Id:        ranking.Id.String(),
			CreatedAt: ranking.CreatedAt,
			Groups:    groups,
		}),
	}
	return errors.WithStack(ctx.JSON(resp))
}
