package models

import "time"

// Base holds the columns every catalog entity carries.
type Base struct {
	ID              int64     `db:"id" json:"id"`
	DatetimeCreated time.Time `db:"datetime_created" json:"datetime_created"`
	DatetimeUpdated time.Time `db:"datetime_updated" json:"datetime_updated"`
	IsActive        bool      `db:"is_active" json:"is_active"`
}

// GetID returns the row id.
func (b Base) GetID() int64 {
	return b.ID
}

// changes collects the non-nil fields of a patch.
type changes map[string]any

func (c changes) set(column string, value any) {
	switch v := value.(type) {
	case *string:
		if v != nil {
			c[column] = *v
		}
	case *int:
		if v != nil {
			c[column] = *v
		}
	case *int64:
		if v != nil {
			c[column] = *v
		}
	case *bool:
		if v != nil {
			c[column] = *v
		}
	}
}
