package entities

import (
	"time"

	"github.com/leafsii/hugo/internal/db/interfaces"
)

// DefaultTable is the table every SQLite store file carries
const DefaultTable = "h"

// Record is one key's stored value plus its timestamps
type Record struct {
	Key       string     `json:"key" db:"key"`
	Value     *string    `json:"value,omitempty" db:"value"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	ExpiredAt *time.Time `json:"expired_at,omitempty" db:"expired_at"`
}

// RecordSchema defines the single table layout
var RecordSchema = &interfaces.Schema{
	TableName: DefaultTable,
	Fields: []interfaces.FieldSchema{
		{Name: "key", Type: "string", PrimaryKey: true},
		{Name: "value", Type: "string", Nullable: true},
		{Name: "created_at", Type: "time"},
		{Name: "updated_at", Type: "time"},
		{Name: "expired_at", Type: "time", Nullable: true},
	},
}
