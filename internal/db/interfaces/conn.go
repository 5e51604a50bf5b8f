package interfaces

import (
	"context"
	"database/sql"
)

// Conn is the slice of a database connection the record store needs.
// Both *sql.DB and *sql.Tx satisfy it; callers normally pass a *sql.Tx
// and own the begin/commit framing themselves.
type Conn interface {
	// ExecContext runs a mutating statement and reports affected rows
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)

	// QueryContext runs a statement returning any number of rows
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// QueryRowContext runs a statement expected to return at most one row
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
