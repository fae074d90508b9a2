package gateway

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the metadata endpoints and the CRUD proxy. authMW
// must run before everything here; adminMW additionally gates the
// operational endpoints.
func RegisterRoutes(app *fiber.App, h *Handler, authMW, adminMW fiber.Handler) {
	meta := app.Group("/meta", authMW)
	meta.Get("/entities", h.ListEntities)
	meta.Get("/entities/:entity", h.GetEntity)
	meta.Get("/entities/:entity/form", h.GetForm)
	meta.Get("/entities/:entity/columns", h.GetColumns)
	meta.Get("/nav", h.GetNav)
	meta.Get("/permissions/:resource", adminMW, h.GetMatrix)
	meta.Post("/reload", adminMW, h.Reload)

	api := app.Group("/api", authMW)
	api.Get("/:entity", h.List)
	api.Get("/:entity/:id", h.Get)
	api.Post("/:entity", h.Create)
	api.Patch("/:entity/:id", h.Update)
	api.Delete("/:entity/:id", h.Delete)
}
