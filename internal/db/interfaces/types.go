package interfaces

import (
	"errors"
)

// Schema represents a table definition
type Schema struct {
	TableName string        `json:"table_name"`
	Fields    []FieldSchema `json:"fields"`
}

// FieldSchema represents a column definition
type FieldSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // "string", "time"
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// WithTable returns a copy of the schema bound to another table name
func (s *Schema) WithTable(name string) *Schema {
	fields := make([]FieldSchema, len(s.Fields))
	copy(fields, s.Fields)
	return &Schema{TableName: name, Fields: fields}
}

// Columns returns the column names in declaration order
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// Common database errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidSchema     = errors.New("invalid schema")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// DatabaseError wraps database-specific errors
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, otherwise a *DatabaseError for op
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{Op: op, Err: err}
}

// IsStorageError reports whether err came from the underlying store
func IsStorageError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr)
}
