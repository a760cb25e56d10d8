package models

// Well-known stage names.
const (
	StageRaw      = "raw"
	StageEnriched = "enriched"
)

// Stage is a named phase of the pipeline.
type Stage struct {
	Base
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description,omitempty"`
}

// TableName returns the database table name
func (Stage) TableName() string {
	return "stages"
}

type StageCreate struct {
	Name        string  `json:"name" yaml:"name" validate:"required,max=64"`
	Description *string `json:"description,omitempty" yaml:"description" validate:"omitempty,max=254"`
}

func (s StageCreate) Columns() map[string]any {
	return map[string]any{
		"name":        s.Name,
		"description": s.Description,
	}
}

type StageUpdate struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=254"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (s StageUpdate) Changes() map[string]any {
	c := changes{}
	c.set("name", s.Name)
	c.set("description", s.Description)
	c.set("is_active", s.IsActive)
	return c
}
