package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// CatalogRepo is the CRUD surface shared by every catalog entity.
type CatalogRepo[E any, C any, U any] interface {
	Create(ctx context.Context, in C) (E, error)
	GetByID(ctx context.Context, id int64) (E, error)
	List(ctx context.Context, offset, limit int) ([]E, error)
	Update(ctx context.Context, id int64, patch U) (E, error)
	Delete(ctx context.Context, id int64, hard bool) error
}

// CatalogHandler serves CRUD routes for one catalog entity.
type CatalogHandler[E any, C any, U any] struct {
	path string
	repo CatalogRepo[E, C, U]
}

// NewCatalogHandler creates a handler mounted at path, e.g. "/sources".
func NewCatalogHandler[E any, C any, U any](path string, repo CatalogRepo[E, C, U]) *CatalogHandler[E, C, U] {
	return &CatalogHandler[E, C, U]{path: path, repo: repo}
}

// RegisterRoutes registers the entity routes
func (h *CatalogHandler[E, C, U]) RegisterRoutes(g *echo.Group) *echo.Group {
	group := g.Group(h.path)
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PATCH("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	return group
}

// Create handles POST
func (h *CatalogHandler[E, C, U]) Create(c echo.Context) error {
	in, err := validation.BindRequest[C](c)
	if err != nil {
		return err
	}

	entity, err := h.repo.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return CreatedResponse(c, entity)
}

// List handles GET with offset and limit
func (h *CatalogHandler[E, C, U]) List(c echo.Context) error {
	offset, limit, err := Page(c)
	if err != nil {
		return err
	}

	entities, err := h.repo.List(c.Request().Context(), offset, limit)
	if err != nil {
		return err
	}
	return SuccessResponse(c, entities)
}

// Get handles GET /:id
func (h *CatalogHandler[E, C, U]) Get(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	entity, err := h.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, entity)
}

// Update handles PATCH /:id
func (h *CatalogHandler[E, C, U]) Update(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	patch, err := validation.BindRequest[U](c)
	if err != nil {
		return err
	}

	entity, err := h.repo.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return SuccessResponse(c, entity)
}

// Delete handles DELETE /:id. ?hard=true removes the row, otherwise it is
// deactivated.
func (h *CatalogHandler[E, C, U]) Delete(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	hard, err := QueryBool(c, "hard")
	if err != nil {
		return err
	}

	if err := h.repo.Delete(c.Request().Context(), id, hard != nil && *hard); err != nil {
		return err
	}
	return NoContentResponse(c)
}

// CatalogRelations lists the children of a catalog row.
type CatalogRelations interface {
	TablesBySource(ctx context.Context, sourceID int64) ([]models.Table, error)
	DataTypeMappingsBySource(ctx context.Context, sourceID int64) ([]models.DataTypeMapping, error)
	ColumnsByTable(ctx context.Context, tableID int64) ([]models.Column, error)
}

// RelationHandler serves the nested listing routes.
type RelationHandler struct {
	relations CatalogRelations
}

func NewRelationHandler(relations CatalogRelations) *RelationHandler {
	return &RelationHandler{relations: relations}
}

// RegisterRoutes registers the nested routes on the sources and tables groups.
func (h *RelationHandler) RegisterRoutes(sources, tables *echo.Group) {
	sources.GET("/:id/tables", h.SourceTables)
	sources.GET("/:id/data-type-mappings", h.SourceDataTypeMappings)
	tables.GET("/:id/columns", h.TableColumns)
}

// SourceTables handles GET /sources/:id/tables
func (h *RelationHandler) SourceTables(c echo.Context) error {
	return listChildren(c, h.relations.TablesBySource)
}

// SourceDataTypeMappings handles GET /sources/:id/data-type-mappings
func (h *RelationHandler) SourceDataTypeMappings(c echo.Context) error {
	return listChildren(c, h.relations.DataTypeMappingsBySource)
}

// TableColumns handles GET /tables/:id/columns
func (h *RelationHandler) TableColumns(c echo.Context) error {
	return listChildren(c, h.relations.ColumnsByTable)
}

func listChildren[T any](c echo.Context, list func(ctx context.Context, id int64) ([]T, error)) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	children, err := list(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if children == nil {
		children = []T{}
	}
	return SuccessResponse(c, children)
}
