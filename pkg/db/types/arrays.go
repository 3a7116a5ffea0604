package dbtypes

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringArray is a text[] column.
type StringArray []string

func (a *StringArray) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return err
	}
	*a = StringArray(raw)
	return nil
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.StringArray(a).Value()
}

func (StringArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return arrayColumnType(db, "text[]")
}

// Contains reports whether value is present.
func (a StringArray) Contains(value string) bool {
	for _, candidate := range a {
		if candidate == value {
			return true
		}
	}
	return false
}

// IntArray is a smallint[] column, used for ISO weekdays.
type IntArray []int64

func (a *IntArray) Scan(src any) error {
	var raw pq.Int64Array
	if err := raw.Scan(src); err != nil {
		return err
	}
	*a = IntArray(raw)
	return nil
}

func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.Int64Array(a).Value()
}

func (IntArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return arrayColumnType(db, "smallint[]")
}

func (a IntArray) Contains(value int64) bool {
	for _, candidate := range a {
		if candidate == value {
			return true
		}
	}
	return false
}
