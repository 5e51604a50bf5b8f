package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/leafsii/hugo/internal/db/interfaces"
)

// Dialect captures the SQL differences between supported engines
type Dialect struct {
	Name       string
	DriverName string // database/sql driver name
	numbered   bool   // $1, $2 placeholders instead of ?
	timeType   string
}

var (
	SQLite = Dialect{
		Name:       DriverSQLite,
		DriverName: "sqlite",
		timeType:   "TIMESTAMP",
	}
	Postgres = Dialect{
		Name:       DriverPostgres,
		DriverName: "pgx",
		numbered:   true,
		timeType:   "TIMESTAMPTZ",
	}
)

// DialectFor returns the dialect registered under name
func DialectFor(name string) (Dialect, error) {
	switch name {
	case DriverSQLite, "sqlite3", "":
		return SQLite, nil
	case DriverPostgres, "postgresql", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("%w: %s", interfaces.ErrUnsupportedDriver, name)
	}
}

// Rebind rewrites ? placeholders into the dialect's native form.
// Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// QuoteIdent quotes a table or column name. Both engines accept
// standard double-quoted identifiers.
func (d Dialect) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// CreateTable renders an idempotent CREATE TABLE for schema
func (d Dialect) CreateTable(schema *interfaces.Schema) (string, error) {
	if schema == nil || schema.TableName == "" || len(schema.Fields) == 0 {
		return "", interfaces.ErrInvalidSchema
	}

	cols := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		typ, err := d.columnType(f.Type)
		if err != nil {
			return "", err
		}
		col := d.QuoteIdent(f.Name) + " " + typ
		if f.PrimaryKey {
			col += " PRIMARY KEY"
		} else if !f.Nullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		d.QuoteIdent(schema.TableName), strings.Join(cols, ", ")), nil
}

// Compact returns the statement reclaiming space after deletions
func (d Dialect) Compact(table string) string {
	if d.numbered {
		return "VACUUM " + d.QuoteIdent(table)
	}
	return "VACUUM"
}

func (d Dialect) columnType(t string) (string, error) {
	switch t {
	case "string":
		return "TEXT", nil
	case "time":
		return d.timeType, nil
	default:
		return "", fmt.Errorf("%w: unknown field type %q", interfaces.ErrInvalidSchema, t)
	}
}
