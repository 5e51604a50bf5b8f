package kv

import (
	"context"

	"github.com/leafsii/hugo/internal/ttl"
)

// GC deletes every record whose expiry has passed, judged against a single
// snapshot of the clock, and returns how many were removed.
func (s *Service) GC(ctx context.Context) (int, error) {
	now := s.now()

	entries, err := s.store.Expiring(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !ttl.IsExpired(&e.ExpiredAt, now) {
			continue
		}
		ok, err := s.store.Delete(ctx, e.Key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}

	s.logger.Infow("Swept expired records", "scanned", len(entries), "removed", removed)
	if s.metrics != nil {
		s.metrics.RecordEviction(ctx, "sweep", int64(removed))
	}
	return removed, nil
}
