package models

import "path"

// Table is one dataset instance within a stage. Promoting a dataset to a
// later stage creates a new Table row.
type Table struct {
	Base
	Name           string  `db:"name" json:"name"`
	Description    *string `db:"description" json:"description,omitempty"`
	SourceLocation *string `db:"source_location" json:"source_location,omitempty"`
	StageID        int64   `db:"stage_id" json:"stage_id"`
	SourceID       int64   `db:"source_id" json:"source_id"`
}

// TableName returns the database table name
func (Table) TableName() string {
	return "tables"
}

// Location returns the source location, or "" when unset.
func (t Table) Location() string {
	if t.SourceLocation == nil {
		return ""
	}
	return *t.SourceLocation
}

// PromotedLocation is the source location given to a table promoted out of
// fromStage.
func PromotedLocation(fromStage, sourceName, tableName string) string {
	return path.Join(fromStage, sourceName, tableName)
}

type TableCreate struct {
	Name           string  `json:"name" yaml:"name" validate:"required,max=128"`
	Description    *string `json:"description,omitempty" yaml:"description" validate:"omitempty,max=254"`
	SourceLocation *string `json:"source_location,omitempty" yaml:"source_location" validate:"omitempty,max=512"`
	StageID        int64   `json:"stage_id" yaml:"-" validate:"required,gt=0"`
	SourceID       int64   `json:"source_id" yaml:"-" validate:"required,gt=0"`
}

func (t TableCreate) Columns() map[string]any {
	return map[string]any{
		"name":            t.Name,
		"description":     t.Description,
		"source_location": t.SourceLocation,
		"stage_id":        t.StageID,
		"source_id":       t.SourceID,
	}
}

type TableUpdate struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	Description    *string `json:"description,omitempty" validate:"omitempty,max=254"`
	SourceLocation *string `json:"source_location,omitempty" validate:"omitempty,max=512"`
	StageID        *int64  `json:"stage_id,omitempty" validate:"omitempty,gt=0"`
	SourceID       *int64  `json:"source_id,omitempty" validate:"omitempty,gt=0"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

func (t TableUpdate) Changes() map[string]any {
	c := changes{}
	c.set("name", t.Name)
	c.set("description", t.Description)
	c.set("source_location", t.SourceLocation)
	c.set("stage_id", t.StageID)
	c.set("source_id", t.SourceID)
	c.set("is_active", t.IsActive)
	return c
}
