package httphandler

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/pointsflow/points-indexer/common/errs"
)

// ExportSnapshot streams the latest snapshot as CSV for reward distribution
// tooling.
func (h *HttpHandler) ExportSnapshot(ctx *fiber.Ctx) (err error) {
	var buf bytes.Buffer
	if err := h.usecase.ExportSnapshotCSV(ctx.UserContext(), &buf); err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("snapshot not found")
		}
		return errors.Wrap(err, "error during ExportSnapshotCSV")
	}

	ctx.Set(fiber.HeaderContentType, "text/csv")
	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="points-snapshot.csv"`)
	return errors.WithStack(ctx.Send(buf.Bytes()))
}
