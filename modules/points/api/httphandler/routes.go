package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/v1/points")

	r.Post("/sources/:sourceId/trigger", h.TriggerSource)
	r.Get("/snapshots/latest", h.GetLatestSnapshot)
	r.Get("/snapshots/export", h.ExportSnapshot)
	r.Get("/snapshots", h.GetSnapshots)
	r.Get("/groups/ranking", h.GetGroupRanking)
	return nil
}
