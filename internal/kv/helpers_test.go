package kv

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/leafsii/hugo/internal/db"
	"github.com/leafsii/hugo/internal/db/interfaces"
	"github.com/leafsii/hugo/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var epoch = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func str(s string) *string {
	return &s
}

// openDB creates a migrated SQLite store file under the test's temp dir
func openDB(t *testing.T, name string) *db.Database {
	t.Helper()
	ctx := context.Background()

	d, err := db.NewDatabase(&db.Config{
		Type: db.DriverSQLite,
		DSN:  filepath.Join(t.TempDir(), name+".sqlite"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	require.NoError(t, db.ConnectAndMigrate(ctx, d))
	return d
}

type fixture struct {
	db      *db.Database
	store   *store.Store
	service *Service
	clock   *fakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	d := openDB(t, "test")
	return newFixtureOn(t, d, d.Conn(), opts...)
}

func newFixtureOn(t *testing.T, d *db.Database, conn interfaces.Conn, opts ...Option) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	clock := &fakeClock{now: epoch}
	st := store.ForDatabase(d, conn, logger)

	base := []Option{WithClock(clock.Now), WithLocation(time.UTC), WithLogger(logger)}
	return &fixture{
		db:      d,
		store:   st,
		service: NewService(st, append(base, opts...)...),
		clock:   clock,
	}
}

// failingConn simulates a storage failure for every write touching failKey
type failingConn struct {
	interfaces.Conn
	failKey string
}

var errSimulated = errors.New("simulated storage failure")

func (c failingConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	for _, a := range args {
		if s, ok := a.(string); ok && s == c.failKey {
			return nil, errSimulated
		}
	}
	return c.Conn.ExecContext(ctx, query, args...)
}
