package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/pointsflow/points-indexer/common/errs"
)

type triggerSourceRequest struct {
	SourceId string `params:"sourceId"`
}

func (r triggerSourceRequest) Validate() error {
	var errList []error
	if r.SourceId == "" {
		errList = append(errList, errors.New("'sourceId' is required"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type triggerSourceResult struct {
	SourceId    string `json:"sourceId"`
	FromBlock   uint64 `json:"fromBlock"`
	ToBlock     uint64 `json:"toBlock"`
	TotalEvents int    `json:"totalEvents"`
}

type triggerSourceResponse = HttpResponse[triggerSourceResult]

func (h *HttpHandler) TriggerSource(ctx *fiber.Ctx) (err error) {
	var req triggerSourceRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.usecase.Trigger(ctx.UserContext(), req.SourceId)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("source not found")
		}
		return errors.Wrap(err, "error during Trigger")
	}

	resp := triggerSourceResponse{
		Result: &triggerSourceResult{
			SourceId:    result.SourceId,
			FromBlock:   result.FromBlock,
			ToBlock:     result.ToBlock,
			TotalEvents: result.TotalEvents,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
