package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/orchestration"
)

// Orchestrator runs promotion passes.
type Orchestrator interface {
	Ingest(ctx context.Context) (*orchestration.PassResult, error)
	Enrich(ctx context.Context, cdcKey int64) (*orchestration.PassResult, error)
	Run(ctx context.Context) (*orchestration.RunResult, error)
}

// OrchestrationHandler triggers passes over HTTP. A pass with failed tables
// still answers 200; per-table failures are in the body.
type OrchestrationHandler struct {
	orchestrator Orchestrator
}

func NewOrchestrationHandler(orchestrator Orchestrator) *OrchestrationHandler {
	return &OrchestrationHandler{orchestrator: orchestrator}
}

// RegisterRoutes registers the orchestration routes
func (h *OrchestrationHandler) RegisterRoutes(g *echo.Group) {
	o := g.Group("/orchestration")
	o.POST("/ingest", h.Ingest)
	o.POST("/enrich", h.Enrich)
	o.POST("/run", h.Run)
}

// Ingest handles POST /orchestration/ingest
func (h *OrchestrationHandler) Ingest(c echo.Context) error {
	result, err := h.orchestrator.Ingest(c.Request().Context())
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// Enrich handles POST /orchestration/enrich?cdc_key=
func (h *OrchestrationHandler) Enrich(c echo.Context) error {
	cdcKey, err := QueryInt64(c, "cdc_key")
	if err != nil {
		return err
	}
	if cdcKey == nil {
		return BadRequest("cdc_key is required")
	}

	result, err := h.orchestrator.Enrich(c.Request().Context(), *cdcKey)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// Run handles POST /orchestration/run
func (h *OrchestrationHandler) Run(c echo.Context) error {
	result, err := h.orchestrator.Run(c.Request().Context())
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}
