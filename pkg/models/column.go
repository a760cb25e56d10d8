package models

// Column is a field of a Table.
type Column struct {
	Base
	Name              string  `db:"name" json:"name"`
	Description       *string `db:"description" json:"description,omitempty"`
	DataType          *string `db:"data_type" json:"data_type,omitempty"`
	Length            *int    `db:"length" json:"length,omitempty"`
	Nullable          *bool   `db:"nullable" json:"nullable,omitempty"`
	Precision         *int    `db:"precision" json:"precision,omitempty"`
	Scale             *int    `db:"scale" json:"scale,omitempty"`
	PrimaryKey        bool    `db:"primary_key" json:"primary_key"`
	TableID           int64   `db:"table_id" json:"table_id"`
	DataTypeMappingID *int64  `db:"data_type_mapping_id" json:"data_type_mapping_id,omitempty"`
}

// TableName returns the database table name
func (Column) TableName() string {
	return "columns"
}

type ColumnCreate struct {
	Name              string  `json:"name" yaml:"name" validate:"required,max=128"`
	Description       *string `json:"description,omitempty" yaml:"description" validate:"omitempty,max=254"`
	DataType          *string `json:"data_type,omitempty" yaml:"data_type" validate:"omitempty,max=64"`
	Length            *int    `json:"length,omitempty" yaml:"length" validate:"omitempty,gte=0"`
	Nullable          *bool   `json:"nullable,omitempty" yaml:"nullable"`
	Precision         *int    `json:"precision,omitempty" yaml:"precision" validate:"omitempty,gte=0"`
	Scale             *int    `json:"scale,omitempty" yaml:"scale" validate:"omitempty,gte=0"`
	PrimaryKey        bool    `json:"primary_key" yaml:"primary_key"`
	TableID           int64   `json:"table_id" yaml:"-" validate:"required,gt=0"`
	DataTypeMappingID *int64  `json:"data_type_mapping_id,omitempty" yaml:"-" validate:"omitempty,gt=0"`
}

func (c ColumnCreate) Columns() map[string]any {
	return map[string]any{
		"name":                 c.Name,
		"description":          c.Description,
		"data_type":            c.DataType,
		"length":               c.Length,
		"nullable":             c.Nullable,
		"precision":            c.Precision,
		"scale":                c.Scale,
		"primary_key":          c.PrimaryKey,
		"table_id":             c.TableID,
		"data_type_mapping_id": c.DataTypeMappingID,
	}
}

type ColumnUpdate struct {
	Name              *string `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	Description       *string `json:"description,omitempty" validate:"omitempty,max=254"`
	DataType          *string `json:"data_type,omitempty" validate:"omitempty,max=64"`
	Length            *int    `json:"length,omitempty" validate:"omitempty,gte=0"`
	Nullable          *bool   `json:"nullable,omitempty"`
	Precision         *int    `json:"precision,omitempty" validate:"omitempty,gte=0"`
	Scale             *int    `json:"scale,omitempty" validate:"omitempty,gte=0"`
	PrimaryKey        *bool   `json:"primary_key,omitempty"`
	TableID           *int64  `json:"table_id,omitempty" validate:"omitempty,gt=0"`
	DataTypeMappingID *int64  `json:"data_type_mapping_id,omitempty" validate:"omitempty,gt=0"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

func (u ColumnUpdate) Changes() map[string]any {
	c := changes{}
	c.set("name", u.Name)
	c.set("description", u.Description)
	c.set("data_type", u.DataType)
	c.set("length", u.Length)
	c.set("nullable", u.Nullable)
	c.set("precision", u.Precision)
	c.set("scale", u.Scale)
	c.set("primary_key", u.PrimaryKey)
	c.set("table_id", u.TableID)
	c.set("data_type_mapping_id", u.DataTypeMappingID)
	c.set("is_active", u.IsActive)
	return c
}
