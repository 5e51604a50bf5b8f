// Package storetest provides conformance tests for the record store on
// every supported database engine
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leafsii/hugo/internal/db"
	"github.com/leafsii/hugo/internal/db/entities"
	"github.com/leafsii/hugo/internal/db/interfaces"
	"github.com/leafsii/hugo/internal/store"
)

// DatabaseFactory opens a fresh, migrated, empty database for one test
type DatabaseFactory func(t *testing.T) *db.Database

// Whole seconds, so engines with microsecond timestamps compare equal
var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// RunConformanceTests runs all conformance tests against databases made by factory
func RunConformanceTests(t *testing.T, factory DatabaseFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, d *db.Database)
	}{
		{"GetNonExistent", testGetNonExistent},
		{"InsertThenUpdate", testInsertThenUpdate},
		{"UpdateKeepsExpiry", testUpdateKeepsExpiry},
		{"ReplaceClearsExpiry", testReplaceClearsExpiry},
		{"NullValue", testNullValue},
		{"SetExpiredAt", testSetExpiredAt},
		{"Delete", testDelete},
		{"Expiring", testExpiring},
		{"EachOrdered", testEachOrdered},
		{"Count", testCount},
		{"SavepointRollback", testSavepointRollback},
		{"TransactionRollback", testTransactionRollback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := factory(t)
			tt.test(t, d)
		})
	}
}

func str(s string) *string {
	return &s
}

func newStore(d *db.Database) *store.Store {
	return store.ForDatabase(d, d.Conn(), nil)
}

func mustUpsert(t *testing.T, s *store.Store, key string, value *string, expiredAt *time.Time, now time.Time) {
	t.Helper()
	ok, err := s.Upsert(context.Background(), key, value, expiredAt, now)
	if err != nil {
		t.Fatalf("Upsert %q failed: %v", key, err)
	}
	if !ok {
		t.Fatalf("Upsert %q reported false", key)
	}
}

func mustGet(t *testing.T, s *store.Store, key string) *entities.Record {
	t.Helper()
	rec, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get %q failed: %v", key, err)
	}
	return rec
}

func testGetNonExistent(t *testing.T, d *db.Database) {
	_, err := newStore(d).Get(context.Background(), "test:nonexistent")
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testInsertThenUpdate(t *testing.T, d *db.Database) {
	s := newStore(d)

	mustUpsert(t, s, "k", str("v1"), nil, base)
	rec := mustGet(t, s, "k")
	if *rec.Value != "v1" || !rec.CreatedAt.Equal(base) || !rec.UpdatedAt.Equal(base) {
		t.Fatalf("Unexpected inserted record: %+v", rec)
	}
	if rec.ExpiredAt != nil {
		t.Fatalf("Expected no expiry, got %v", rec.ExpiredAt)
	}

	later := base.Add(time.Minute)
	mustUpsert(t, s, "k", str("v2"), nil, later)
	rec = mustGet(t, s, "k")
	if *rec.Value != "v2" {
		t.Fatalf("Expected v2, got %q", *rec.Value)
	}
	if !rec.CreatedAt.Equal(base) {
		t.Fatalf("created_at changed to %v", rec.CreatedAt)
	}
	if !rec.UpdatedAt.Equal(later) {
		t.Fatalf("Expected updated_at %v, got %v", later, rec.UpdatedAt)
	}
}

func testUpdateKeepsExpiry(t *testing.T, d *db.Database) {
	s := newStore(d)
	exp := base.Add(time.Hour)

	mustUpsert(t, s, "k", str("v1"), &exp, base)
	mustUpsert(t, s, "k", str("v2"), nil, base.Add(time.Second))

	rec := mustGet(t, s, "k")
	if rec.ExpiredAt == nil || !rec.ExpiredAt.Equal(exp) {
		t.Fatalf("Expected expiry %v to survive, got %v", exp, rec.ExpiredAt)
	}

	exp2 := base.Add(2 * time.Hour)
	mustUpsert(t, s, "k", str("v3"), &exp2, base.Add(2*time.Second))
	rec = mustGet(t, s, "k")
	if rec.ExpiredAt == nil || !rec.ExpiredAt.Equal(exp2) {
		t.Fatalf("Expected expiry %v, got %v", exp2, rec.ExpiredAt)
	}
}

func testReplaceClearsExpiry(t *testing.T, d *db.Database) {
	ctx := context.Background()
	s := newStore(d)
	exp := base.Add(time.Hour)

	mustUpsert(t, s, "k", str("v1"), &exp, base)

	ok, err := s.Replace(ctx, "k", str("v2"), nil, base.Add(time.Second))
	if err != nil || !ok {
		t.Fatalf("Replace failed: %v, %v", ok, err)
	}
	rec := mustGet(t, s, "k")
	if *rec.Value != "v2" || rec.ExpiredAt != nil {
		t.Fatalf("Expected v2 without expiry, got %q, %v", *rec.Value, rec.ExpiredAt)
	}
	if !rec.CreatedAt.Equal(base) {
		t.Fatalf("created_at changed to %v", rec.CreatedAt)
	}

	ok, err = s.Replace(ctx, "fresh", nil, &exp, base)
	if err != nil || !ok {
		t.Fatalf("Replace insert failed: %v, %v", ok, err)
	}
	rec = mustGet(t, s, "fresh")
	if rec.ExpiredAt == nil || !rec.ExpiredAt.Equal(exp) {
		t.Fatalf("Expected expiry %v, got %v", exp, rec.ExpiredAt)
	}
}

func testNullValue(t *testing.T, d *db.Database) {
	s := newStore(d)

	mustUpsert(t, s, "n", nil, nil, base)
	rec := mustGet(t, s, "n")
	if rec.Value != nil {
		t.Fatalf("Expected null value, got %q", *rec.Value)
	}

	mustUpsert(t, s, "e", str(""), nil, base)
	rec = mustGet(t, s, "e")
	if rec.Value == nil || *rec.Value != "" {
		t.Fatalf("Expected empty string to stay distinct from null, got %v", rec.Value)
	}
}

func testSetExpiredAt(t *testing.T, d *db.Database) {
	ctx := context.Background()
	s := newStore(d)
	exp := base.Add(time.Hour)

	ok, err := s.SetExpiredAt(ctx, "missing", exp)
	if err != nil {
		t.Fatalf("SetExpiredAt failed: %v", err)
	}
	if ok {
		t.Fatal("Expected false for a missing key")
	}

	mustUpsert(t, s, "k", str("v"), nil, base)
	ok, err = s.SetExpiredAt(ctx, "k", exp)
	if err != nil {
		t.Fatalf("SetExpiredAt failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected true for an existing key")
	}

	rec := mustGet(t, s, "k")
	if rec.ExpiredAt == nil || !rec.ExpiredAt.Equal(exp) {
		t.Fatalf("Expected expiry %v, got %v", exp, rec.ExpiredAt)
	}
	if !rec.UpdatedAt.Equal(base) {
		t.Fatalf("Re-arming must not touch updated_at, got %v", rec.UpdatedAt)
	}
}

func testDelete(t *testing.T, d *db.Database) {
	ctx := context.Background()
	s := newStore(d)
	mustUpsert(t, s, "k", str("v"), nil, base)

	ok, err := s.Delete(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Expected delete to remove the row, got %v, %v", ok, err)
	}

	ok, err = s.Delete(ctx, "k")
	if err != nil || ok {
		t.Fatalf("Expected second delete to report false, got %v, %v", ok, err)
	}
}

func testExpiring(t *testing.T, d *db.Database) {
	ctx := context.Background()
	s := newStore(d)
	exp := base.Add(time.Hour)

	mustUpsert(t, s, "a", str("1"), &exp, base)
	mustUpsert(t, s, "b", str("2"), nil, base)

	entries, err := s.Expiring(ctx)
	if err != nil {
		t.Fatalf("Expiring failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "a" || !entries[0].ExpiredAt.Equal(exp) {
		t.Fatalf("Unexpected expiring entries: %+v", entries)
	}
}

func testEachOrdered(t *testing.T, d *db.Database) {
	ctx := context.Background()
	s := newStore(d)
	for _, k := range []string{"c", "a", "b"} {
		mustUpsert(t, s, k, str(k), nil, base)
	}

	var keys []string
	err := s.Each(ctx, func(rec entities.Record) error {
		keys = append(keys, rec.Key)
		return nil
	})
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("Expected ordered keys, got %v", keys)
	}

	stop := errors.New("stop")
	seen := 0
	err = s.Each(ctx, func(entities.Record) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) || seen != 1 {
		t.Fatalf("Expected Each to stop after the first error, got %v after %d", err, seen)
	}
}

func testCount(t *testing.T, d *db.Database) {
	ctx := context.Background()
	s := newStore(d)

	n, err := s.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Expected empty table, got %d, %v", n, err)
	}

	past := base.Add(-time.Hour)
	mustUpsert(t, s, "a", str("1"), &past, base)
	mustUpsert(t, s, "b", str("2"), nil, base)

	n, err = s.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 rows including the expired one, got %d, %v", n, err)
	}
}

func testSavepointRollback(t *testing.T, d *db.Database) {
	ctx := context.Background()
	failed := errors.New("row failed")

	err := d.Transaction(ctx, func(ctx context.Context, tx interfaces.Conn) error {
		s := store.ForDatabase(d, tx, nil)

		if err := s.Savepoint(ctx, "sp", func() error {
			_, err := s.Upsert(ctx, "kept", str("1"), nil, base)
			return err
		}); err != nil {
			return err
		}

		err := s.Savepoint(ctx, "sp", func() error {
			if _, err := s.Upsert(ctx, "dropped", str("2"), nil, base); err != nil {
				return err
			}
			return failed
		})
		if !errors.Is(err, failed) {
			t.Errorf("Expected savepoint to return the inner error, got %v", err)
		}

		// the transaction must still accept writes
		_, err = s.Upsert(ctx, "after", str("3"), nil, base)
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	s := newStore(d)
	mustGet(t, s, "kept")
	mustGet(t, s, "after")
	if _, err := s.Get(ctx, "dropped"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("Expected rolled back row to be absent, got %v", err)
	}
}

func testTransactionRollback(t *testing.T, d *db.Database) {
	ctx := context.Background()
	failed := errors.New("abort")

	err := d.Transaction(ctx, func(ctx context.Context, tx interfaces.Conn) error {
		if _, err := store.ForDatabase(d, tx, nil).Upsert(ctx, "k", str("v"), nil, base); err != nil {
			return err
		}
		return failed
	})
	if !errors.Is(err, failed) {
		t.Fatalf("Expected abort error, got %v", err)
	}

	if _, err := newStore(d).Get(ctx, "k"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("Expected no row after rollback, got %v", err)
	}
}
