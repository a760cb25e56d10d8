package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// RouterDeps are the services the API exposes. Verifier and Health are
// optional.
type RouterDeps struct {
	ServiceName  string
	Catalog      *repositories.Catalog
	StageLogs    StageLogService
	Orchestrator Orchestrator
	Health       *health.Checker
	Verifier     middleware.TokenVerifier
	AllowOrigins []string
	AllowMethods []string
}

// NewRouter builds the echo instance serving /api/v1.
func NewRouter(logger ectologger.Logger, deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(deps.ServiceName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	if len(deps.AllowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: deps.AllowOrigins,
			AllowMethods: deps.AllowMethods,
		}))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if deps.Health != nil {
		deps.Health.RegisterRoutes(e)
	}

	api := e.Group("/api/v1")
	if deps.Verifier != nil {
		api.Use(middleware.Authentication(logger, deps.Verifier))
	}

	if deps.Catalog != nil {
		RegisterCatalogRoutes(api, deps.Catalog)
	}
	if deps.StageLogs != nil {
		NewStageLogHandler(deps.StageLogs).RegisterRoutes(api)
	}
	if deps.Orchestrator != nil {
		NewOrchestrationHandler(deps.Orchestrator).RegisterRoutes(api)
	}

	return e
}

// RegisterCatalogRoutes mounts CRUD for every catalog entity plus the nested
// listings.
func RegisterCatalogRoutes(api *echo.Group, catalog *repositories.Catalog) {
	sources := NewCatalogHandler[models.Source, models.SourceCreate, models.SourceUpdate]("/sources", catalog.Sources).RegisterRoutes(api)
	NewCatalogHandler[models.Stage, models.StageCreate, models.StageUpdate]("/stages", catalog.Stages).RegisterRoutes(api)
	tables := NewCatalogHandler[models.Table, models.TableCreate, models.TableUpdate]("/tables", catalog.Tables).RegisterRoutes(api)
	NewCatalogHandler[models.Column, models.ColumnCreate, models.ColumnUpdate]("/columns", catalog.Columns).RegisterRoutes(api)
	NewCatalogHandler[models.DataTypeMapping, models.DataTypeMappingCreate, models.DataTypeMappingUpdate]("/data-type-mappings", catalog.DataTypeMappings).RegisterRoutes(api)

	NewRelationHandler(catalog).RegisterRoutes(sources, tables)
}
