package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/leafsii/hugo/internal/metrics"
	"github.com/leafsii/hugo/internal/ttl"
)

// Operation is one top-level request. The set of operations is closed:
// only the types in this file implement it.
type Operation interface {
	Name() string
	isOperation()
}

type Has struct {
	Key string
	Options
}

type Get struct {
	Key     string
	Default *string
	Options
}

type Set struct {
	Key   string
	Value *string
	TTL   *string
}

// Modify is inc, or dec when Subtract is set
type Modify struct {
	Key      string
	Delta    *string
	Subtract bool
	Options
}

type Swap struct {
	Key   string
	Value *string
	Options
}

type Check struct {
	Key   string
	Value *string
	Options
}

type Remove struct {
	Key string
}

// TTL shows the expiry of Key, or re-arms it when Value is set
type TTL struct {
	Key   string
	Value *string
}

type Import struct {
	Path string
}

type GC struct{}

func (Has) Name() string    { return "has" }
func (Get) Name() string    { return "get" }
func (Set) Name() string    { return "set" }
func (Swap) Name() string   { return "swap" }
func (Check) Name() string  { return "check" }
func (Remove) Name() string { return "unset" }
func (TTL) Name() string    { return "ttl" }
func (Import) Name() string { return "import" }
func (GC) Name() string     { return "gc" }

func (m Modify) Name() string {
	if m.Subtract {
		return "dec"
	}
	return "inc"
}

func (Has) isOperation()    {}
func (Get) isOperation()    {}
func (Set) isOperation()    {}
func (Modify) isOperation() {}
func (Swap) isOperation()   {}
func (Check) isOperation()  {}
func (Remove) isOperation() {}
func (TTL) isOperation()    {}
func (Import) isOperation() {}
func (GC) isOperation()     {}

// Outcome is what an operation reports to its caller: whether it succeeded
// or found something, and the lines to print.
type Outcome struct {
	OK    bool
	Lines []string
}

// Execute runs op against the store
func (s *Service) Execute(ctx context.Context, op Operation) (out Outcome, err error) {
	if op == nil {
		return Outcome{}, fmt.Errorf("%w: nil", ErrUnknownOperation)
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperation(ctx, op.Name(), metrics.ResultOf(out.OK, err), time.Since(start))
		}
		if err != nil {
			s.logger.Debugw("Operation failed", "op", op.Name(), "error", err)
		}
	}()

	switch op := op.(type) {
	case Has:
		ok, err := s.Has(ctx, op.Key, op.Options)
		return Outcome{OK: ok}, err

	case Get:
		found, err := s.Get(ctx, op.Key, op.Default, op.Options)
		return lookupOutcome(found), err

	case Set:
		ok, err := s.Set(ctx, op.Key, op.Value, Options{TTL: op.TTL})
		return Outcome{OK: ok}, err

	case Modify:
		n, err := s.Modify(ctx, op.Key, op.Delta, op.Subtract, op.Options)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Lines: []string{FormatNumber(n)}}, nil

	case Swap:
		prev, err := s.Swap(ctx, op.Key, op.Value, op.Options)
		return lookupOutcome(prev), err

	case Check:
		ok, err := s.Check(ctx, op.Key, op.Value, op.Options)
		return Outcome{OK: ok}, err

	case Remove:
		ok, err := s.Remove(ctx, op.Key)
		return Outcome{OK: ok}, err

	case TTL:
		res, err := s.TTL(ctx, op.Key, op.Value)
		if err != nil || !res.Found {
			return Outcome{}, err
		}
		out := Outcome{OK: true}
		if op.Value == nil && res.ExpiredAt != nil {
			out.Lines = []string{ttl.Format(*res.ExpiredAt, s.loc)}
		}
		return out, nil

	case Import:
		ok, err := s.Import(ctx, op.Path)
		return Outcome{OK: ok}, err

	case GC:
		_, err := s.GC(ctx)
		return Outcome{OK: err == nil}, err

	default:
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownOperation, op.Name())
	}
}

func lookupOutcome(l Lookup) Outcome {
	out := Outcome{OK: l.Found()}
	if v, ok := l.Value(); ok {
		out.Lines = []string{v}
	}
	return out
}
