package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// StageLogService is the stage log state machine.
type StageLogService interface {
	Open(ctx context.Context, in models.OpenStageLog) (models.StageLog, error)
	Get(ctx context.Context, id int64) (models.StageLog, error)
	List(ctx context.Context, filter repositories.StageLogFilter, offset, limit int) ([]models.StageLog, error)
	ListByCDCKey(ctx context.Context, cdcKey int64) ([]models.StageLog, error)
	Close(ctx context.Context, id int64, in models.CloseStageLog) (models.StageLog, error)
	Delete(ctx context.Context, id int64) error
	AppendMessage(ctx context.Context, id int64, message string, isError bool) (models.StageLogMessage, error)
	ListMessages(ctx context.Context, id int64) ([]models.StageLogMessage, error)
}

// StageLogHandler handles stage log API requests
type StageLogHandler struct {
	logs StageLogService
}

func NewStageLogHandler(logs StageLogService) *StageLogHandler {
	return &StageLogHandler{logs: logs}
}

// RegisterRoutes registers the stage log routes
func (h *StageLogHandler) RegisterRoutes(g *echo.Group) {
	logs := g.Group("/stage-logs")
	logs.POST("", h.Open)
	logs.GET("", h.List)
	logs.GET("/:id", h.Get)
	logs.DELETE("/:id", h.Delete)
	logs.POST("/:id/close", h.Close)
	logs.POST("/:id/messages", h.AppendMessage)
	logs.GET("/:id/messages", h.ListMessages)
}

// Open handles POST /stage-logs
func (h *StageLogHandler) Open(c echo.Context) error {
	in, err := validation.BindRequest[models.OpenStageLog](c)
	if err != nil {
		return err
	}

	log, err := h.logs.Open(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return CreatedResponse(c, log)
}

// List handles GET /stage-logs. With cdc_key alone it returns every log of
// that pass; other filters page through the table.
func (h *StageLogHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter, err := stageLogFilter(c)
	if err != nil {
		return err
	}
	offset, limit, err := Page(c)
	if err != nil {
		return err
	}

	if filter.CDCKey != nil && filter == (repositories.StageLogFilter{CDCKey: filter.CDCKey}) && offset == 0 && limit == 0 {
		logs, err := h.logs.ListByCDCKey(ctx, *filter.CDCKey)
		if err != nil {
			return err
		}
		return SuccessResponse(c, logs)
	}

	logs, err := h.logs.List(ctx, filter, offset, limit)
	if err != nil {
		return err
	}
	return SuccessResponse(c, logs)
}

func stageLogFilter(c echo.Context) (repositories.StageLogFilter, error) {
	var (
		filter repositories.StageLogFilter
		err    error
	)
	if filter.TableID, err = QueryInt64(c, "table_id"); err != nil {
		return filter, err
	}
	if filter.StageID, err = QueryInt64(c, "stage_id"); err != nil {
		return filter, err
	}
	if filter.CDCKey, err = QueryInt64(c, "cdc_key"); err != nil {
		return filter, err
	}
	if filter.IsOpen, err = QueryBool(c, "is_open"); err != nil {
		return filter, err
	}
	if filter.Success, err = QueryBool(c, "success"); err != nil {
		return filter, err
	}
	if filter.MinRecords, err = QueryInt64(c, "min_records"); err != nil {
		return filter, err
	}
	return filter, nil
}

// Get handles GET /stage-logs/:id
func (h *StageLogHandler) Get(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	log, err := h.logs.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, log)
}

// Delete handles DELETE /stage-logs/:id
func (h *StageLogHandler) Delete(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.logs.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return NoContentResponse(c)
}

// Close handles POST /stage-logs/:id/close
func (h *StageLogHandler) Close(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	in, err := validation.BindRequest[models.CloseStageLog](c)
	if err != nil {
		return err
	}

	log, err := h.logs.Close(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return SuccessResponse(c, log)
}

// AppendMessage handles POST /stage-logs/:id/messages
func (h *StageLogHandler) AppendMessage(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	in, err := validation.BindRequest[models.AppendStageLogMessage](c)
	if err != nil {
		return err
	}

	msg, err := h.logs.AppendMessage(c.Request().Context(), id, in.Message, in.IsError)
	if err != nil {
		return err
	}
	return CreatedResponse(c, msg)
}

// ListMessages handles GET /stage-logs/:id/messages
func (h *StageLogHandler) ListMessages(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	messages, err := h.logs.ListMessages(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, messages)
}
