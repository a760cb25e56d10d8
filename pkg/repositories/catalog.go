package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/models"
)

var (
	SourceEntity          = Entity{Table: models.Source{}.TableName(), Singular: "source"}
	StageEntity           = Entity{Table: models.Stage{}.TableName(), Singular: "stage"}
	TableEntity           = Entity{Table: models.Table{}.TableName(), Singular: "table"}
	ColumnEntity          = Entity{Table: models.Column{}.TableName(), Singular: "column"}
	DataTypeMappingEntity = Entity{Table: models.DataTypeMapping{}.TableName(), Singular: "data_type_mapping"}
)

type SourceRepository struct {
	*CatalogRepository[models.Source, models.SourceCreate, models.SourceUpdate]
}

func NewSourceRepository(db database.DB, logger ectologger.Logger) *SourceRepository {
	return &SourceRepository{NewCatalogRepository[models.Source, models.SourceCreate, models.SourceUpdate](db, logger, SourceEntity)}
}

// GetByName returns the first source called name.
func (r *SourceRepository) GetByName(ctx context.Context, name string) (models.Source, error) {
	return r.FindOneBy(ctx, map[string]any{"name": name})
}

// Find looks a source up by its natural key. A nil connectionDetails matches
// sources without connection details.
func (r *SourceRepository) Find(ctx context.Context, name string, connectionDetails *string) (models.Source, error) {
	where := map[string]any{"name": name, "connection_details": nil}
	if connectionDetails != nil {
		where["connection_details"] = *connectionDetails
	}
	return r.FindOneBy(ctx, where)
}

type StageRepository struct {
	*CatalogRepository[models.Stage, models.StageCreate, models.StageUpdate]
}

func NewStageRepository(db database.DB, logger ectologger.Logger) *StageRepository {
	return &StageRepository{NewCatalogRepository[models.Stage, models.StageCreate, models.StageUpdate](db, logger, StageEntity)}
}

// GetByName returns the stage called name.
func (r *StageRepository) GetByName(ctx context.Context, name string) (models.Stage, error) {
	stage, err := r.FindOneBy(ctx, map[string]any{"name": name})
	if errs.IsNotFound(err) {
		return stage, errs.NotFound("stage '%s' does not exist", name)
	}
	return stage, err
}

type TableRepository struct {
	*CatalogRepository[models.Table, models.TableCreate, models.TableUpdate]
}

func NewTableRepository(db database.DB, logger ectologger.Logger) *TableRepository {
	return &TableRepository{NewCatalogRepository[models.Table, models.TableCreate, models.TableUpdate](db, logger, TableEntity)}
}

// ListByStage returns the active tables of a stage in insertion order.
func (r *TableRepository) ListByStage(ctx context.Context, stageID int64) ([]models.Table, error) {
	return r.FindBy(ctx, map[string]any{"stage_id": stageID, "is_active": true})
}

// ListBySource returns every table of a source across stages.
func (r *TableRepository) ListBySource(ctx context.Context, sourceID int64) ([]models.Table, error) {
	return r.FindBy(ctx, map[string]any{"source_id": sourceID})
}

// Find looks a table up by its natural key.
func (r *TableRepository) Find(ctx context.Context, stageID, sourceID int64, name string) (models.Table, error) {
	return r.FindOneBy(ctx, map[string]any{
		"stage_id":  stageID,
		"source_id": sourceID,
		"name":      name,
	})
}

type ColumnRepository struct {
	*CatalogRepository[models.Column, models.ColumnCreate, models.ColumnUpdate]
}

func NewColumnRepository(db database.DB, logger ectologger.Logger) *ColumnRepository {
	return &ColumnRepository{NewCatalogRepository[models.Column, models.ColumnCreate, models.ColumnUpdate](db, logger, ColumnEntity)}
}

// ListByTable returns the columns of a table.
func (r *ColumnRepository) ListByTable(ctx context.Context, tableID int64) ([]models.Column, error) {
	return r.FindBy(ctx, map[string]any{"table_id": tableID})
}

// Find looks a column up by table and name.
func (r *ColumnRepository) Find(ctx context.Context, tableID int64, name string) (models.Column, error) {
	return r.FindOneBy(ctx, map[string]any{
		"table_id": tableID,
		"name":     name,
	})
}

type DataTypeMappingRepository struct {
	*CatalogRepository[models.DataTypeMapping, models.DataTypeMappingCreate, models.DataTypeMappingUpdate]
}

func NewDataTypeMappingRepository(db database.DB, logger ectologger.Logger) *DataTypeMappingRepository {
	return &DataTypeMappingRepository{NewCatalogRepository[models.DataTypeMapping, models.DataTypeMappingCreate, models.DataTypeMappingUpdate](db, logger, DataTypeMappingEntity)}
}

// ListBySource returns the type mappings of a source.
func (r *DataTypeMappingRepository) ListBySource(ctx context.Context, sourceID int64) ([]models.DataTypeMapping, error) {
	return r.FindBy(ctx, map[string]any{"source_id": sourceID})
}

// Find looks a mapping up by its natural key.
func (r *DataTypeMappingRepository) Find(ctx context.Context, sourceID int64, sourceDataType string) (models.DataTypeMapping, error) {
	return r.FindOneBy(ctx, map[string]any{
		"source_id":        sourceID,
		"source_data_type": sourceDataType,
	})
}

// Catalog groups the catalog repositories behind one handle.
type Catalog struct {
	Sources          *SourceRepository
	Stages           *StageRepository
	Tables           *TableRepository
	Columns          *ColumnRepository
	DataTypeMappings *DataTypeMappingRepository
}

func NewCatalog(db database.DB, logger ectologger.Logger) *Catalog {
	return &Catalog{
		Sources:          NewSourceRepository(db, logger),
		Stages:           NewStageRepository(db, logger),
		Tables:           NewTableRepository(db, logger),
		Columns:          NewColumnRepository(db, logger),
		DataTypeMappings: NewDataTypeMappingRepository(db, logger),
	}
}
