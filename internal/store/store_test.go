package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leafsii/hugo/internal/db"
	"github.com/leafsii/hugo/internal/db/entities"
	"github.com/leafsii/hugo/internal/db/interfaces"
	"github.com/leafsii/hugo/internal/store"
	"github.com/leafsii/hugo/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func str(s string) *string {
	return &s
}

func openSQLite(t *testing.T) *db.Database {
	t.Helper()
	d, err := db.NewDatabase(&db.Config{
		Type:   db.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "store.sqlite"),
		Logger: zaptest.NewLogger(t).Sugar(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, db.ConnectAndMigrate(context.Background(), d))
	return d
}

func TestSQLiteStore(t *testing.T) {
	storetest.RunConformanceTests(t, openSQLite)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("HUGO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HUGO_TEST_POSTGRES_DSN not set, skipping Postgres tests")
	}

	factory := func(t *testing.T) *db.Database {
		table := fmt.Sprintf("hugo_test_%d", time.Now().UnixNano())
		d, err := db.NewDatabase(&db.Config{
			Type:  db.DriverPostgres,
			DSN:   dsn,
			Table: table,
		})
		require.NoError(t, err)
		require.NoError(t, db.ConnectAndMigrate(context.Background(), d))

		t.Cleanup(func() {
			_, _ = d.Conn().ExecContext(context.Background(), "DROP TABLE IF EXISTS "+d.Dialect().QuoteIdent(table))
			d.Close()
		})
		return d
	}

	storetest.RunConformanceTests(t, factory)
}

// duplicateKeys builds a table without a primary key holding two rows for "dup"
func duplicateKeys(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	d := openSQLite(t)

	schema := entities.RecordSchema.WithTable("loose")
	for i := range schema.Fields {
		schema.Fields[i].PrimaryKey = false
	}
	ddl, err := d.Dialect().CreateTable(schema)
	require.NoError(t, err)
	_, err = d.Conn().ExecContext(ctx, ddl)
	require.NoError(t, err)

	s := store.New(d.Conn(), d.Dialect(), schema, nil)
	for i := 0; i < 2; i++ {
		_, err := d.Conn().ExecContext(ctx,
			`INSERT INTO "loose" (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			"dup", "v", now, now)
		require.NoError(t, err)
	}
	return s
}

func TestUpsertPanicsOnDuplicateRows(t *testing.T) {
	s := duplicateKeys(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_, _ = s.Upsert(ctx, "dup", str("w"), nil, now)
	})
	assert.Panics(t, func() {
		_, _ = s.SetExpiredAt(ctx, "dup", now.Add(time.Hour))
	})
}

func TestDeleteReportsFalseForDuplicateRows(t *testing.T) {
	s := duplicateKeys(t)

	ok, err := s.Delete(context.Background(), "dup")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestErrorsAreWrapped(t *testing.T) {
	d := openSQLite(t)
	s := store.New(d.Conn(), d.Dialect(), entities.RecordSchema.WithTable("absent"), nil)

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, interfaces.IsStorageError(err))
	assert.NotErrorIs(t, err, interfaces.ErrNotFound)
}

func TestOpenSourceIsReadOnly(t *testing.T) {
	ctx := context.Background()
	d := openSQLite(t)
	_, err := store.ForDatabase(d, d.Conn(), nil).Upsert(ctx, "k", str("v"), nil, now)
	require.NoError(t, err)

	src, err := store.OpenSource(ctx, d.DSN(), nil)
	require.NoError(t, err)
	defer src.Close()

	rows, err := src.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "k", rows[0].Key)

	_, err = src.Upsert(ctx, "x", str("y"), nil, now)
	assert.Error(t, err)
}
