package models

// Source is an external data origin.
type Source struct {
	Base
	Name              string  `db:"name" json:"name"`
	Description       *string `db:"description" json:"description,omitempty"`
	ConnectionDetails *string `db:"connection_details" json:"connection_details,omitempty"`
}

// TableName returns the database table name
func (Source) TableName() string {
	return "sources"
}

type SourceCreate struct {
	Name              string  `json:"name" yaml:"name" validate:"required,max=64"`
	Description       *string `json:"description,omitempty" yaml:"description" validate:"omitempty,max=254"`
	ConnectionDetails *string `json:"connection_details,omitempty" yaml:"connection_details" validate:"omitempty,max=254"`
}

func (s SourceCreate) Columns() map[string]any {
	return map[string]any{
		"name":               s.Name,
		"description":        s.Description,
		"connection_details": s.ConnectionDetails,
	}
}

type SourceUpdate struct {
	Name              *string `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Description       *string `json:"description,omitempty" validate:"omitempty,max=254"`
	ConnectionDetails *string `json:"connection_details,omitempty" validate:"omitempty,max=254"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

func (s SourceUpdate) Changes() map[string]any {
	c := changes{}
	c.set("name", s.Name)
	c.set("description", s.Description)
	c.set("connection_details", s.ConnectionDetails)
	c.set("is_active", s.IsActive)
	return c
}
