package kv

import (
	"context"
	"time"

	"github.com/leafsii/hugo/internal/db/entities"
)

// Source yields the records of a store being imported
type Source interface {
	Each(ctx context.Context, fn func(entities.Record) error) error
	Close() error
}

// SourceOpener opens the store found at path for import
type SourceOpener func(ctx context.Context, path string) (Source, error)

const importSavepoint = "hugo_import_row"

// Import copies every record of the store at path into this one
func (s *Service) Import(ctx context.Context, path string) (bool, error) {
	src, err := s.openSource(ctx, path)
	if err != nil {
		return false, err
	}
	defer src.Close()

	return s.ImportFrom(ctx, src)
}

// ImportFrom replays every record of src as a raw upsert carrying the
// source's absolute expiry, or its lack of one. A failing record is logged and skipped; the
// result is true only if every record was written.
func (s *Service) ImportFrom(ctx context.Context, src Source) (bool, error) {
	now := s.now()
	result := true
	rows := 0

	err := src.Each(ctx, func(rec entities.Record) error {
		rows++
		ok, err := s.importRecord(ctx, rec, now)
		if err != nil {
			s.logger.Warnw("Failed to import record", "key", rec.Key, "error", err)
			ok = false
		}
		if s.metrics != nil {
			s.metrics.RecordImportRow(ctx, ok)
		}
		result = result && ok
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.Infow("Imported records", "rows", rows, "ok", result)
	return result, nil
}

// importRecord isolates one record's writes so that a failure leaves the
// surrounding transaction usable for the rows after it. The source's expiry
// is copied as is; a nil expiry clears the target's.
func (s *Service) importRecord(ctx context.Context, rec entities.Record, now time.Time) (bool, error) {
	var ok bool
	err := s.store.Savepoint(ctx, importSavepoint, func() error {
		if _, err := s.load(ctx, rec.Key, now); err != nil {
			return err
		}
		var err error
		ok, err = s.store.Replace(ctx, rec.Key, rec.Value, rec.ExpiredAt, now)
		return err
	})
	return ok, err
}
