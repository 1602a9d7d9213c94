package httphandler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/samber/lo"
)

type getSnapshotsRequest struct {
	From string `query:"from"`
	To   string `query:"to"`

	from time.Time
	to   time.Time
}

func (r *getSnapshotsRequest) Validate() error {
	var errList []error
	if r.From == "" {
		errList = append(errList, errors.New("'from' is required"))
	} else {
		from, err := time.Parse(time.RFC3339, r.From)
		if err != nil {
			errList = append(errList, errors.New("'from' must be a RFC3339 timestamp"))
		} else {
			r.from = from
		}
	}
	if r.To != "" {
		to, err := time.Parse(time.RFC3339, r.To)
		if err != nil {
			errList = append(errList, errors.New("'to' must be a RFC3339 timestamp"))
		} else {
			r.to = to
		}
	}
	if !r.from.IsZero() && !r.to.IsZero() && r.to.Before(r.from) {
		errList = append(errList, errors.New("'to' must not be before 'from'"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

// ParseDefault fills the open end of the range.
func (r *getSnapshotsRequest) ParseDefault() error {
	if r.to.IsZero() {
		r.to = time.Now()
	}
	return nil
}

type getSnapshotsResult struct {
	List []pointsSnapshot `json:"list"`
}

type getSnapshotsResponse = HttpResponse[getSnapshotsResult]

func (h *HttpHandler) GetSnapshots(ctx *fiber.Ctx) (err error) {
	var req getSnapshotsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	if err := req.ParseDefault(); err != nil {
		return errors.WithStack(err)
	}

	snapshots, err := h.usecase.SnapshotRange(ctx.UserContext(), req.from, req.to)
	if err != nil {
		if errors.Is(err, errs.InvalidArgument) {
			return errs.NewPublicError("invalid snapshot range")
		}
		return errors.Wrap(err, "error during SnapshotRange")
	}

	list := make([]pointsSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		list = append(list, newPointsSnapshot(snapshot))
	}
	resp := getSnapshotsResponse{
		Result: lo.ToPtr(getSnapshotsResult{List: list}),
	}
	return errors.WithStack(ctx.JSON(resp))
}
