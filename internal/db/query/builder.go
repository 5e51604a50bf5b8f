package query

import (
	"strings"

	"github.com/leafsii/hugo/internal/db/interfaces"
)

// Dialect is what the builder needs from a SQL engine
type Dialect interface {
	Rebind(query string) string
	QuoteIdent(name string) string
}

// Builder renders the statements used against one schema's table.
// Conditions and assignments take ? placeholders, rebound on output.
type Builder struct {
	schema  *interfaces.Schema
	dialect Dialect
	table   string
}

// NewBuilder creates a new query builder for a schema
func NewBuilder(schema *interfaces.Schema, dialect Dialect) *Builder {
	return &Builder{
		schema:  schema,
		dialect: dialect,
		table:   dialect.QuoteIdent(schema.TableName),
	}
}

// Eq is the condition `col = ?`
func (b *Builder) Eq(col string) string {
	return b.dialect.QuoteIdent(col) + " = ?"
}

// NotNull is the condition `col IS NOT NULL`
func (b *Builder) NotNull(col string) string {
	return b.dialect.QuoteIdent(col) + " IS NOT NULL"
}

// Select reads cols, or every schema column when cols is empty
func (b *Builder) Select(cols []string, where, orderBy string) string {
	if len(cols) == 0 {
		cols = b.schema.Columns()
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.columnList(cols))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	b.writeWhere(&sb, where)
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.dialect.QuoteIdent(orderBy))
	}
	return b.dialect.Rebind(sb.String())
}

// Update assigns a placeholder to each of cols; their arguments come
// before the condition's
func (b *Builder) Update(cols []string, where string) string {
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = b.Eq(c)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.table)
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(set, ", "))
	b.writeWhere(&sb, where)
	return b.dialect.Rebind(sb.String())
}

// Insert writes every schema column in declaration order
func (b *Builder) Insert() string {
	cols := b.schema.Columns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return b.dialect.Rebind("INSERT INTO " + b.table + " (" + b.columnList(cols) + ") VALUES (" + marks + ")")
}

func (b *Builder) Delete(where string) string {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.table)
	b.writeWhere(&sb, where)
	return b.dialect.Rebind(sb.String())
}

func (b *Builder) Count() string {
	return "SELECT COUNT(*) FROM " + b.table
}

func (b *Builder) columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = b.dialect.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func (b *Builder) writeWhere(sb *strings.Builder, where string) {
	if where == "" {
		return
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(where)
}
