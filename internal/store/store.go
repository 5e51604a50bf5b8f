package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leafsii/hugo/internal/db"
	"github.com/leafsii/hugo/internal/db/entities"
	"github.com/leafsii/hugo/internal/db/interfaces"
	"github.com/leafsii/hugo/internal/db/query"
	"go.uber.org/zap"
)

// Expiry pairs a key with its non-null expiry instant
type Expiry struct {
	Key       string
	ExpiredAt time.Time
}

// Store reads and writes the record table through one connection,
// normally the caller's transaction.
type Store struct {
	conn    interfaces.Conn
	dialect db.Dialect
	logger  *zap.SugaredLogger

	qGet          string
	qUpdate       string
	qUpdateExpiry string
	qInsert       string
	qSetExpiry    string
	qDelete       string
	qExpiring     string
	qAll          string
	qCount        string
}

// New binds a store to conn for the table described by schema
func New(conn interfaces.Conn, dialect db.Dialect, schema *interfaces.Schema, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	b := query.NewBuilder(schema, dialect)
	byKey := b.Eq("key")

	return &Store{
		conn:          conn,
		dialect:       dialect,
		logger:        logger,
		qGet:          b.Select(nil, byKey, ""),
		qUpdate:       b.Update([]string{"value", "updated_at"}, byKey),
		qUpdateExpiry: b.Update([]string{"value", "updated_at", "expired_at"}, byKey),
		qInsert:       b.Insert(),
		qSetExpiry:    b.Update([]string{"expired_at"}, byKey),
		qDelete:       b.Delete(byKey),
		qExpiring:     b.Select([]string{"key", "expired_at"}, b.NotNull("expired_at"), ""),
		qAll:          b.Select(nil, "", "key"),
		qCount:        b.Count(),
	}
}

// ForDatabase binds a store for d's table to conn
func ForDatabase(d *db.Database, conn interfaces.Conn, logger *zap.SugaredLogger) *Store {
	return New(conn, d.Dialect(), d.Schema(), logger)
}

// Get returns the raw row for key, expired or not.
// It returns interfaces.ErrNotFound when no row exists.
func (s *Store) Get(ctx context.Context, key string) (*entities.Record, error) {
	rec, err := scanRecord(s.conn.QueryRowContext(ctx, s.qGet, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, interfaces.Wrap("get", err)
	}
	return rec, nil
}

// Upsert writes value for key. An existing row keeps created_at and, when
// expiredAt is nil, its current expiry. The UPDATE runs first and the INSERT
// only when no row matched.
func (s *Store) Upsert(ctx context.Context, key string, value *string, expiredAt *time.Time, now time.Time) (bool, error) {
	return s.upsert(ctx, key, value, expiredAt, expiredAt != nil, now)
}

// Replace is Upsert that always writes expiredAt, so a nil expiry clears
// the existing one. Import uses it to copy rows as they are.
func (s *Store) Replace(ctx context.Context, key string, value *string, expiredAt *time.Time, now time.Time) (bool, error) {
	return s.upsert(ctx, key, value, expiredAt, true, now)
}

func (s *Store) upsert(ctx context.Context, key string, value *string, expiredAt *time.Time, writeExpiry bool, now time.Time) (bool, error) {
	now = now.UTC()

	var (
		res sql.Result
		err error
	)
	if writeExpiry {
		res, err = s.conn.ExecContext(ctx, s.qUpdateExpiry, nullString(value), now, nullTime(expiredAt), key)
	} else {
		res, err = s.conn.ExecContext(ctx, s.qUpdate, nullString(value), now, key)
	}
	if err != nil {
		return false, interfaces.Wrap("update", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, interfaces.Wrap("update", err)
	}

	switch {
	case n == 0:
		if _, err := s.conn.ExecContext(ctx, s.qInsert, key, nullString(value), now, now, nullTime(expiredAt)); err != nil {
			return false, interfaces.Wrap("insert", err)
		}
		s.logger.Debugw("Inserted record", "key", key)
	case n == 1:
		s.logger.Debugw("Updated record", "key", key)
	default:
		panic(fmt.Sprintf("store: UPDATE affected %d rows for key %q", n, key))
	}

	return true, nil
}

// SetExpiredAt re-arms the expiry of an existing row. It reports false when
// no row matched.
func (s *Store) SetExpiredAt(ctx context.Context, key string, expiredAt time.Time) (bool, error) {
	res, err := s.conn.ExecContext(ctx, s.qSetExpiry, expiredAt.UTC(), key)
	if err != nil {
		return false, interfaces.Wrap("set expiry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, interfaces.Wrap("set expiry", err)
	}
	if n > 1 {
		panic(fmt.Sprintf("store: UPDATE affected %d rows for key %q", n, key))
	}
	return n == 1, nil
}

// Delete removes key and reports whether exactly one row went away
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.conn.ExecContext(ctx, s.qDelete, key)
	if err != nil {
		return false, interfaces.Wrap("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, interfaces.Wrap("delete", err)
	}
	return n == 1, nil
}

// Expiring lists every row carrying an expiry. The rows are fully read
// before returning so callers may delete while iterating the result.
func (s *Store) Expiring(ctx context.Context) ([]Expiry, error) {
	rows, err := s.conn.QueryContext(ctx, s.qExpiring)
	if err != nil {
		return nil, interfaces.Wrap("scan expiring", err)
	}
	defer rows.Close()

	var out []Expiry
	for rows.Next() {
		var (
			key string
			at  time.Time
		)
		if err := rows.Scan(&key, &at); err != nil {
			return nil, interfaces.Wrap("scan expiring", err)
		}
		out = append(out, Expiry{Key: key, ExpiredAt: at.UTC()})
	}
	return out, interfaces.Wrap("scan expiring", rows.Err())
}

// Each streams every row ordered by key. An error from fn stops the scan.
func (s *Store) Each(ctx context.Context, fn func(entities.Record) error) error {
	rows, err := s.conn.QueryContext(ctx, s.qAll)
	if err != nil {
		return interfaces.Wrap("scan", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return interfaces.Wrap("scan", err)
		}
		if err := fn(*rec); err != nil {
			return err
		}
	}
	return interfaces.Wrap("scan", rows.Err())
}

// All returns every row ordered by key
func (s *Store) All(ctx context.Context) ([]entities.Record, error) {
	var out []entities.Record
	err := s.Each(ctx, func(rec entities.Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Count returns the number of stored rows, expired ones included
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.QueryRowContext(ctx, s.qCount).Scan(&n); err != nil {
		return 0, interfaces.Wrap("count", err)
	}
	return n, nil
}

// Savepoint runs fn so that a failure undoes only fn's writes and leaves
// the surrounding transaction usable.
func (s *Store) Savepoint(ctx context.Context, name string, fn func() error) error {
	sp := s.dialect.QuoteIdent(name)
	if _, err := s.conn.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return interfaces.Wrap("savepoint", err)
	}

	if err := fn(); err != nil {
		if _, rbErr := s.conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return errors.Join(err, interfaces.Wrap("rollback to savepoint", rbErr))
		}
		if _, relErr := s.conn.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); relErr != nil {
			return errors.Join(err, interfaces.Wrap("release savepoint", relErr))
		}
		return err
	}

	_, err := s.conn.ExecContext(ctx, "RELEASE SAVEPOINT "+sp)
	return interfaces.Wrap("release savepoint", err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*entities.Record, error) {
	var (
		rec       entities.Record
		value     sql.NullString
		expiredAt sql.NullTime
	)
	if err := row.Scan(&rec.Key, &value, &rec.CreatedAt, &rec.UpdatedAt, &expiredAt); err != nil {
		return nil, err
	}
	if value.Valid {
		v := value.String
		rec.Value = &v
	}
	if expiredAt.Valid {
		t := expiredAt.Time.UTC()
		rec.ExpiredAt = &t
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
