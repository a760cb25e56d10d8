package metadata

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// CatalogStore adapts the catalog repositories to Store.
type CatalogStore struct {
	catalog *repositories.Catalog
}

var _ Store = (*CatalogStore)(nil)

func NewCatalogStore(catalog *repositories.Catalog) *CatalogStore {
	return &CatalogStore{catalog: catalog}
}

func (s *CatalogStore) FindSource(ctx context.Context, name string, connectionDetails *string) (models.Source, error) {
	return s.catalog.Sources.Find(ctx, name, connectionDetails)
}

func (s *CatalogStore) CreateSource(ctx context.Context, in models.SourceCreate) (models.Source, error) {
	return s.catalog.Sources.Create(ctx, in)
}

func (s *CatalogStore) FindStage(ctx context.Context, name string) (models.Stage, error) {
	return s.catalog.Stages.GetByName(ctx, name)
}

func (s *CatalogStore) CreateStage(ctx context.Context, in models.StageCreate) (models.Stage, error) {
	return s.catalog.Stages.Create(ctx, in)
}

func (s *CatalogStore) FindDataTypeMapping(ctx context.Context, sourceID int64, sourceDataType string) (models.DataTypeMapping, error) {
	return s.catalog.DataTypeMappings.Find(ctx, sourceID, sourceDataType)
}

func (s *CatalogStore) CreateDataTypeMapping(ctx context.Context, in models.DataTypeMappingCreate) (models.DataTypeMapping, error) {
	return s.catalog.DataTypeMappings.Create(ctx, in)
}

func (s *CatalogStore) FindTable(ctx context.Context, stageID, sourceID int64, name string) (models.Table, error) {
	return s.catalog.Tables.Find(ctx, stageID, sourceID, name)
}

func (s *CatalogStore) CreateTable(ctx context.Context, in models.TableCreate) (models.Table, error) {
	return s.catalog.Tables.Create(ctx, in)
}

func (s *CatalogStore) FindColumn(ctx context.Context, tableID int64, name string) (models.Column, error) {
	return s.catalog.Columns.Find(ctx, tableID, name)
}

func (s *CatalogStore) CreateColumn(ctx context.Context, in models.ColumnCreate) (models.Column, error) {
	return s.catalog.Columns.Create(ctx, in)
}
