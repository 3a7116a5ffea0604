package dbtypes

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// UUIDArray is a uuid[] column. Promotions use it for dish, category and
// loyalty level targeting. Other dialects store the array literal as text.
type UUIDArray []uuid.UUID

func (a *UUIDArray) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("UUIDArray: %w", err)
	}
	ids := make(UUIDArray, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("UUIDArray: parse %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	*a = ids
	return nil
}

// Value always renders an array literal; a nil array is stored as {} so the
// NOT NULL defaults hold.
func (a UUIDArray) Value() (driver.Value, error) {
	raw := make(pq.StringArray, len(a))
	for i, id := range a {
		raw[i] = id.String()
	}
	return raw.Value()
}

func (UUIDArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return arrayColumnType(db, "uuid[]")
}

func (a UUIDArray) Contains(id uuid.UUID) bool {
	for _, candidate := range a {
		if candidate == id {
			return true
		}
	}
	return false
}

func arrayColumnType(db *gorm.DB, postgresType string) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return postgresType
	}
	return "text"
}
