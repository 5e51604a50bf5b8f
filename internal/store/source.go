package store

import (
	"context"

	"github.com/leafsii/hugo/internal/db"
	"go.uber.org/zap"
)

// Source is a second store opened read-only to copy records from
type Source struct {
	*Store
	db *db.Database
}

// OpenSource opens the SQLite store file at path without write access
func OpenSource(ctx context.Context, path string, logger *zap.SugaredLogger) (*Source, error) {
	d, err := db.OpenSource(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	return &Source{
		Store: ForDatabase(d, d.Conn(), logger),
		db:    d,
	}, nil
}

func (s *Source) Close() error {
	return s.db.Close()
}
