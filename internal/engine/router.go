package engine

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fieldserve-backend/internal/logger"
)

// RegisterRoutes mounts the generic entity routes and the attachment routes
// behind the auth middleware. Literal segments (search, lookup, attachments)
// are registered before the parameterized ones so Fiber matches them first.
func RegisterRoutes(app *fiber.App, h *Handler, fh *FileHandler, authMW fiber.Handler) {
	api := app.Group("/api", authMW)

	api.Get("/attachments/:id/download", fh.Download)
	api.Delete("/attachments/:id", fh.Delete)

	api.Get("/:entity/search", h.Search)
	api.Get("/:entity/lookup", h.Lookup)

	api.Get("/:entity", h.List)
	api.Post("/:entity", h.Create)
	api.Get("/:entity/:id", h.GetByID)
	api.Put("/:entity/:id", h.Update)
	api.Patch("/:entity/:id", h.Update)
	api.Delete("/:entity/:id", h.Delete)

	api.Post("/:entity/:id/status", h.ChangeStatus)
	api.Post("/:entity/:id/attachments", fh.Upload)
}

// FiberErrorHandler is the app-wide error handler: an *AppError becomes its
// own status and envelope, anything else is logged and becomes a 500. No
// internal error text ever reaches a response body.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}

	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		return c.Status(code).JSON(ErrorResponse{
			Error: &AppError{Code: "INTERNAL_ERROR", Status: code, Message: fiberErr.Message},
		})
	}

	logger.L().Error("unhandled request error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(code).JSON(ErrorResponse{Error: InternalError()})
}
