package models

// DataTypeMapping translates a source-native type to canonical SQL and
// columnar type names, scoped to a Source.
type DataTypeMapping struct {
	Base
	SourceDataType   string  `db:"source_data_type" json:"source_data_type"`
	SourceDataFormat *string `db:"source_data_format" json:"source_data_format,omitempty"`
	SQLType          *string `db:"sql_type" json:"sql_type,omitempty"`
	ParquetType      *string `db:"parquet_type" json:"parquet_type,omitempty"`
	SourceID         int64   `db:"source_id" json:"source_id"`
}

// TableName returns the database table name
func (DataTypeMapping) TableName() string {
	return "data_type_mappings"
}

type DataTypeMappingCreate struct {
	SourceDataType   string  `json:"source_data_type" yaml:"source_data_type" validate:"required,max=64"`
	SourceDataFormat *string `json:"source_data_format,omitempty" yaml:"source_data_format" validate:"omitempty,max=128"`
	SQLType          *string `json:"sql_type,omitempty" yaml:"sql_type" validate:"omitempty,max=64"`
	ParquetType      *string `json:"parquet_type,omitempty" yaml:"parquet_type" validate:"omitempty,max=64"`
	SourceID         int64   `json:"source_id" yaml:"-" validate:"required,gt=0"`
}

func (d DataTypeMappingCreate) Columns() map[string]any {
	return map[string]any{
		"source_data_type":   d.SourceDataType,
		"source_data_format": d.SourceDataFormat,
		"sql_type":           d.SQLType,
		"parquet_type":       d.ParquetType,
		"source_id":          d.SourceID,
	}
}

type DataTypeMappingUpdate struct {
	SourceDataType   *string `json:"source_data_type,omitempty" validate:"omitempty,min=1,max=64"`
	SourceDataFormat *string `json:"source_data_format,omitempty" validate:"omitempty,max=128"`
	SQLType          *string `json:"sql_type,omitempty" validate:"omitempty,max=64"`
	ParquetType      *string `json:"parquet_type,omitempty" validate:"omitempty,max=64"`
	SourceID         *int64  `json:"source_id,omitempty" validate:"omitempty,gt=0"`
	IsActive         *bool   `json:"is_active,omitempty"`
}

func (d DataTypeMappingUpdate) Changes() map[string]any {
	c := changes{}
	c.set("source_data_type", d.SourceDataType)
	c.set("source_data_format", d.SourceDataFormat)
	c.set("sql_type", d.SQLType)
	c.set("parquet_type", d.ParquetType)
	c.set("source_id", d.SourceID)
	c.set("is_active", d.IsActive)
	return c
}
