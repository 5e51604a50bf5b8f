// Package kv implements the value operations of the store: reads with lazy
// expiry, upserts, numeric modification, swap, removal, TTL management,
// bulk import and the expiry sweep.
//
// A Service is bound to one connection, normally the caller's transaction.
// Each operation captures the current time once and threads it through every
// expiry decision it makes.
package kv

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/leafsii/hugo/internal/db/entities"
	"github.com/leafsii/hugo/internal/db/interfaces"
	"github.com/leafsii/hugo/internal/metrics"
	"github.com/leafsii/hugo/internal/store"
	"github.com/leafsii/hugo/internal/ttl"
	"go.uber.org/zap"
)

// Options carries the per-call TTL and refresh flags
type Options struct {
	// TTL is the raw TTL string; nil leaves expiries untouched
	TTL *string
	// Refresh re-arms the expiry of a key found by a read. It requires TTL.
	Refresh bool
}

// TTLOutcome reports the result of a TTL query or update
type TTLOutcome struct {
	Found     bool
	Updated   bool
	ExpiredAt *time.Time
}

type Service struct {
	store      *store.Store
	now        func() time.Time
	loc        *time.Location
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	openSource SourceOpener
}

type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone absolute TTLs are read in and expiries shown in
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSourceOpener replaces how import opens the store it copies from
func WithSourceOpener(open SourceOpener) Option {
	return func(s *Service) { s.openSource = open }
}

func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		now:    time.Now,
		loc:    time.Local,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.openSource == nil {
		s.openSource = func(ctx context.Context, path string) (Source, error) {
			return store.OpenSource(ctx, path, s.logger)
		}
	}
	return s
}

// Get returns the live value of key. A missing key, or a present key with a
// null value, resolves to def when def is non-nil.
func (s *Service) Get(ctx context.Context, key string, def *string, opt Options) (Lookup, error) {
	now := s.now()
	expiredAt, err := s.expiry(opt.TTL, now)
	if err != nil {
		return NotFound(), err
	}

	rec, err := s.read(ctx, key, opt.Refresh, expiredAt, now)
	if err != nil {
		return NotFound(), err
	}

	switch {
	case rec == nil && def == nil:
		return NotFound(), nil
	case rec == nil || rec.Value == nil:
		return FoundWith(def), nil
	default:
		return FoundWith(rec.Value), nil
	}
}

// Has reports whether key is present and unexpired, whatever its value
func (s *Service) Has(ctx context.Context, key string, opt Options) (bool, error) {
	found, err := s.Get(ctx, key, nil, opt)
	return found.Found(), err
}

// Set writes value for key. Without a TTL an existing expiry is kept.
func (s *Service) Set(ctx context.Context, key string, value *string, opt Options) (bool, error) {
	now := s.now()
	expiredAt, err := s.expiry(opt.TTL, now)
	if err != nil {
		return false, err
	}
	return s.upsert(ctx, key, value, expiredAt, now)
}

// Modify adds delta (default 1) to the numeric value of key, or subtracts it,
// and stores the result. An absent or null value counts as zero.
func (s *Service) Modify(ctx context.Context, key string, delta *string, subtract bool, opt Options) (float64, error) {
	d := 1.0
	if delta != nil {
		var err error
		if d, err = strconv.ParseFloat(*delta, 64); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrNumberFormat, err)
		}
	}

	now := s.now()
	expiredAt, err := s.expiry(opt.TTL, now)
	if err != nil {
		return 0, err
	}

	rec, err := s.read(ctx, key, opt.Refresh, expiredAt, now)
	if err != nil {
		return 0, err
	}

	current := 0.0
	if rec != nil && rec.Value != nil {
		if current, err = strconv.ParseFloat(*rec.Value, 64); err != nil {
			return 0, fmt.Errorf("%w: stored value of %q: %w", ErrNumberFormat, key, err)
		}
	}

	sign := 1.0
	if subtract {
		sign = -1.0
	}
	modified := current + d*sign

	formatted := FormatNumber(modified)
	if _, err := s.store.Upsert(ctx, key, &formatted, expiredAt, now); err != nil {
		return 0, err
	}
	return modified, nil
}

// Swap writes value for key and returns what Get would have returned just before
func (s *Service) Swap(ctx context.Context, key string, value *string, opt Options) (Lookup, error) {
	now := s.now()
	expiredAt, err := s.expiry(opt.TTL, now)
	if err != nil {
		return NotFound(), err
	}

	rec, err := s.read(ctx, key, opt.Refresh, expiredAt, now)
	if err != nil {
		return NotFound(), err
	}

	prev := NotFound()
	if rec != nil {
		prev = FoundWith(rec.Value)
	}

	if _, err := s.store.Upsert(ctx, key, value, expiredAt, now); err != nil {
		return NotFound(), err
	}
	return prev, nil
}

// Check is Swap reporting only whether key existed before
func (s *Service) Check(ctx context.Context, key string, value *string, opt Options) (bool, error) {
	prev, err := s.Swap(ctx, key, value, opt)
	return prev.Found(), err
}

// Remove deletes key and reports whether a row went away
func (s *Service) Remove(ctx context.Context, key string) (bool, error) {
	return s.store.Delete(ctx, key)
}

// TTL re-arms the expiry of a live key when newTTL is given, otherwise it
// reports the current expiry without changing anything.
func (s *Service) TTL(ctx context.Context, key string, newTTL *string) (TTLOutcome, error) {
	now := s.now()
	expiredAt, err := s.expiry(newTTL, now)
	if err != nil {
		return TTLOutcome{}, err
	}

	rec, err := s.load(ctx, key, now)
	if err != nil || rec == nil {
		return TTLOutcome{}, err
	}

	if expiredAt == nil {
		return TTLOutcome{Found: true, ExpiredAt: rec.ExpiredAt}, nil
	}

	updated, err := s.store.SetExpiredAt(ctx, key, *expiredAt)
	if err != nil {
		return TTLOutcome{}, err
	}
	return TTLOutcome{Found: updated, Updated: updated, ExpiredAt: expiredAt}, nil
}

// FormatNumber renders a modified value the way it is stored: the shortest
// decimal form, with no exponent and no trailing ".0". Infinities are
// written "inf" and "-inf".
func FormatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (s *Service) expiry(raw *string, now time.Time) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := ttl.Parse(*raw, now, s.loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// load returns the live row for key, or nil. An expired row is deleted on
// the way and reported as absent.
func (s *Service) load(ctx context.Context, key string, now time.Time) (*entities.Record, error) {
	rec, err := s.store.Get(ctx, key)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !ttl.IsExpired(rec.ExpiredAt, now) {
		return rec, nil
	}

	if _, err := s.store.Delete(ctx, key); err != nil {
		return nil, err
	}
	s.logger.Debugw("Evicted expired record", "key", key, "expired_at", rec.ExpiredAt)
	if s.metrics != nil {
		s.metrics.RecordEviction(ctx, "lazy", 1)
	}
	return nil, nil
}

// read is load plus the optional refresh of the found row's expiry
func (s *Service) read(ctx context.Context, key string, refresh bool, expiredAt *time.Time, now time.Time) (*entities.Record, error) {
	rec, err := s.load(ctx, key, now)
	if err != nil || rec == nil || !refresh {
		return rec, err
	}
	if expiredAt == nil {
		return nil, ErrNoTTLForRefresh
	}

	if _, err := s.store.SetExpiredAt(ctx, key, *expiredAt); err != nil {
		return nil, err
	}
	rec.ExpiredAt = expiredAt
	return rec, nil
}

// upsert clears an expired row first so the write starts a fresh record
// instead of inheriting a past expiry.
func (s *Service) upsert(ctx context.Context, key string, value *string, expiredAt *time.Time, now time.Time) (bool, error) {
	if _, err := s.load(ctx, key, now); err != nil {
		return false, err
	}
	return s.store.Upsert(ctx, key, value, expiredAt, now)
}
