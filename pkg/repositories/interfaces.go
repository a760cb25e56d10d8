package repositories

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

// CatalogStore is the catalog surface the orchestrator depends on.
type CatalogStore interface {
	GetStageByName(ctx context.Context, name string) (models.Stage, error)
	GetSource(ctx context.Context, id int64) (models.Source, error)
	ListTablesByStage(ctx context.Context, stageID int64) ([]models.Table, error)
	GetTable(ctx context.Context, id int64) (models.Table, error)
	FindTable(ctx context.Context, stageID, sourceID int64, name string) (models.Table, error)
	CreateTable(ctx context.Context, in models.TableCreate) (models.Table, error)
}

// LogStore is the stage log surface used by the state machine.
type LogStore interface {
	Open(ctx context.Context, in models.OpenStageLog) (models.StageLog, error)
	Get(ctx context.Context, id int64) (models.StageLog, error)
	Close(ctx context.Context, id int64, in models.CloseStageLog) (models.StageLog, error)
	AppendMessage(ctx context.Context, id int64, in models.AppendStageLogMessage) (models.StageLogMessage, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter StageLogFilter, offset, limit int) ([]models.StageLog, error)
	ListPromotable(ctx context.Context, stageID, cdcKey int64) ([]models.StageLog, error)
	ListMessages(ctx context.Context, id int64) ([]models.StageLogMessage, error)
}

var (
	_ CatalogStore = (*Catalog)(nil)
	_ LogStore     = (*StageLogRepository)(nil)
)

func (c *Catalog) GetStageByName(ctx context.Context, name string) (models.Stage, error) {
	return c.Stages.GetByName(ctx, name)
}

func (c *Catalog) GetSource(ctx context.Context, id int64) (models.Source, error) {
	return c.Sources.GetByID(ctx, id)
}

func (c *Catalog) ListTablesByStage(ctx context.Context, stageID int64) ([]models.Table, error) {
	return c.Tables.ListByStage(ctx, stageID)
}

func (c *Catalog) GetTable(ctx context.Context, id int64) (models.Table, error) {
	return c.Tables.GetByID(ctx, id)
}

func (c *Catalog) FindTable(ctx context.Context, stageID, sourceID int64, name string) (models.Table, error) {
	return c.Tables.Find(ctx, stageID, sourceID, name)
}

func (c *Catalog) CreateTable(ctx context.Context, in models.TableCreate) (models.Table, error) {
	return c.Tables.Create(ctx, in)
}

// TablesBySource lists the tables of an existing source.
func (c *Catalog) TablesBySource(ctx context.Context, sourceID int64) ([]models.Table, error) {
	if _, err := c.Sources.GetByID(ctx, sourceID); err != nil {
		return nil, err
	}
	return c.Tables.ListBySource(ctx, sourceID)
}

// DataTypeMappingsBySource lists the type mappings of an existing source.
func (c *Catalog) DataTypeMappingsBySource(ctx context.Context, sourceID int64) ([]models.DataTypeMapping, error) {
	if _, err := c.Sources.GetByID(ctx, sourceID); err != nil {
		return nil, err
	}
	return c.DataTypeMappings.ListBySource(ctx, sourceID)
}

// ColumnsByTable lists the columns of an existing table.
func (c *Catalog) ColumnsByTable(ctx context.Context, tableID int64) ([]models.Column, error) {
	if _, err := c.Tables.GetByID(ctx, tableID); err != nil {
		return nil, err
	}
	return c.Columns.ListByTable(ctx, tableID)
}
