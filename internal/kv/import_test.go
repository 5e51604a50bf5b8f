package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leafsii/hugo/internal/db/entities"
	"github.com/leafsii/hugo/internal/db/interfaces"
	"github.com/leafsii/hugo/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type sliceSource struct {
	records []entities.Record
	closed  bool
}

func (s *sliceSource) Each(_ context.Context, fn func(entities.Record) error) error {
	for _, rec := range s.records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func record(key string, value *string, expiredAt *time.Time) entities.Record {
	return entities.Record{Key: key, Value: value, CreatedAt: epoch, UpdatedAt: epoch, ExpiredAt: expiredAt}
}

func TestImportFromPath(t *testing.T) {
	ctx := context.Background()

	srcDB := openDB(t, "source")
	src := store.ForDatabase(srcDB, srcDB.Conn(), nil)
	later := epoch.Add(48 * time.Hour)
	_, err := src.Upsert(ctx, "a", str("1"), nil, epoch.Add(-time.Hour))
	require.NoError(t, err)
	_, err = src.Upsert(ctx, "b", nil, &later, epoch.Add(-time.Hour))
	require.NoError(t, err)

	f := newFixture(t)
	_, err = f.service.Set(ctx, "a", str("old"), Options{})
	require.NoError(t, err)

	ok, err := f.service.Import(ctx, srcDB.DSN())
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := f.store.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "a", rows[0].Key)
	assert.Equal(t, "1", *rows[0].Value)
	assert.True(t, epoch.Equal(rows[0].CreatedAt))

	assert.Equal(t, "b", rows[1].Key)
	assert.Nil(t, rows[1].Value)
	require.NotNil(t, rows[1].ExpiredAt)
	assert.True(t, later.Equal(*rows[1].ExpiredAt))
	assert.True(t, epoch.Equal(rows[1].CreatedAt), "source timestamps are not carried over")
}

func TestImportMissingSource(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Import(context.Background(), "/nonexistent/dir/store.sqlite")
	require.Error(t, err)
}

func TestImportContinuesPastFailingRow(t *testing.T) {
	ctx := context.Background()
	d := openDB(t, "dest")

	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core).Sugar()
	src := &sliceSource{records: []entities.Record{
		record("a", str("1"), nil),
		record("b", str("2"), nil),
		record("c", str("3"), nil),
	}}

	var ok bool
	err := d.Transaction(ctx, func(ctx context.Context, tx interfaces.Conn) error {
		f := newFixtureOn(t, d, failingConn{Conn: tx, failKey: "b"}, WithLogger(logger))
		var err error
		ok, err = f.service.ImportFrom(ctx, src)
		return err
	})
	require.NoError(t, err)
	assert.False(t, ok)

	st := store.ForDatabase(d, d.Conn(), nil)
	rows, err := st.All(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"a", "c"}, keys)

	warned := logs.FilterMessage("Failed to import record").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "b", warned[0].ContextMap()["key"])
}

func TestImportOverwritesExpiredTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Set(ctx, "k", str("stale"), Options{TTL: str("1s")})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	ok, err := f.service.ImportFrom(ctx, &sliceSource{records: []entities.Record{record("k", str("fresh"), nil)}})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := f.store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "fresh", *rec.Value)
	assert.Nil(t, rec.ExpiredAt)
}

func TestImportCopiesMissingExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Set(ctx, "k", str("old"), Options{TTL: str("1h")})
	require.NoError(t, err)

	ok, err := f.service.ImportFrom(ctx, &sliceSource{records: []entities.Record{record("k", str("new"), nil)}})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := f.store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", *rec.Value)
	assert.Nil(t, rec.ExpiredAt, "a source row without expiry never expires in the target")
	assert.True(t, epoch.Equal(rec.CreatedAt))
}

func TestImportUsesOpener(t *testing.T) {
	src := &sliceSource{records: []entities.Record{record("x", str("y"), nil)}}
	var opened string
	f := newFixture(t, WithSourceOpener(func(_ context.Context, path string) (Source, error) {
		opened = path
		return src, nil
	}))

	ok, err := f.service.Import(context.Background(), "other")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "other", opened)
	assert.True(t, src.closed)

	errOpen := errors.New("no such store")
	f = newFixture(t, WithSourceOpener(func(context.Context, string) (Source, error) {
		return nil, errOpen
	}))
	_, err = f.service.Import(context.Background(), "other")
	assert.ErrorIs(t, err, errOpen)
}
