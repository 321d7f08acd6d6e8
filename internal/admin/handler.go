package admin

import (
	"github.com/gofiber/fiber/v2"

	"fieldserve-backend/internal/engine"
	"fieldserve-backend/internal/metadata"
)

// Handler exposes the entity catalog as a read-only admin surface. The
// registry is immutable at runtime, so there are no write endpoints; catalog
// changes go through the YAML overlay and a restart.
type Handler struct {
	registry *metadata.Registry
}

func NewHandler(reg *metadata.Registry) *Handler {
	return &Handler{registry: reg}
}

// RegisterRoutes mounts the meta endpoints; both middlewares are required
// (auth, then admin role).
func RegisterRoutes(app *fiber.App, h *Handler, authMW, adminMW fiber.Handler) {
	grp := app.Group("/api/_meta", authMW, adminMW)
	grp.Get("/entities", h.ListEntities)
	grp.Get("/entities/:name", h.GetEntity)
	grp.Get("/validate", h.Validate)
}

// ListEntities handles GET /api/_meta/entities: a per-entity summary plus
// the category grouping.
func (h *Handler) ListEntities(c *fiber.Ctx) error {
	names := h.registry.EntityNames()
	entities := make([]fiber.Map, 0, len(names))
	for _, name := range names {
		meta, err := h.registry.Get(name)
		if err != nil {
			return err
		}
		entities = append(entities, fiber.Map{
			"entity_name":  meta.EntityName,
			"table_name":   meta.TableName,
			"category":     meta.Category,
			"business":     meta.IsBusiness(),
			"rls_resource": meta.RLSResource,
			"searchable":   len(meta.SearchableFields) > 0,
			"status_flow":  meta.StatusFlow != nil,
		})
	}
	return c.JSON(fiber.Map{
		"data": entities,
		"meta": fiber.Map{
			"total":      len(names),
			"business":   h.registry.BusinessEntityNames(),
			"system":     h.registry.SystemEntityNames(),
			"categories": h.registry.EntitiesByCategory(),
		},
	})
}

// GetEntity handles GET /api/_meta/entities/:name: the full metadata entry.
func (h *Handler) GetEntity(c *fiber.Ctx) error {
	name := c.Params("name")
	meta, err := h.registry.Get(name)
	if err != nil {
		return engine.UnknownEntityError(name)
	}
	return c.JSON(fiber.Map{"data": meta})
}

// Validate handles GET /api/_meta/validate: the catalog invariants as data.
// The startup Check makes a failing response here unreachable in a running
// server; the endpoint exists so overlay authors can see exactly what the
// validator sees.
func (h *Handler) Validate(c *fiber.Ctx) error {
	problems := h.registry.Validate()
	if problems == nil {
		problems = []string{}
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"valid":    len(problems) == 0,
			"problems": problems,
		},
	})
}
