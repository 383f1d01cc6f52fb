package model

import (
	"time"

	"gorm.io/datatypes"
)

// Setting is a persisted runtime configuration value.
// At most one of the value columns is populated.
type Setting struct {
	Name         string         `json:"name" gorm:"primaryKey;size:100"`
	StringValue  *string        `json:"string_value"`
	IntegerValue *int64         `json:"integer_value"`
	BoolValue    *bool          `json:"bool_value"`
	ListValue    datatypes.JSON `json:"list_value"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
