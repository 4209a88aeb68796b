// Package ledger keeps supplier credit notes and their application against supplier
// invoices consistent: every application is recorded once, credit and invoice totals
// move together, and nothing is half-written when something fails.
package ledger

import (
	"context"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/rs/zerolog"
)

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	ID   uint
	Name string
}

// StateCache stores computed credit states. Implementations must tolerate misses.
type StateCache interface {
	Get(ctx context.Context, creditID uint) (*CreditState, bool)
	Set(ctx context.Context, state *CreditState)
	Invalidate(ctx context.Context, creditID uint)
}

type Ledger struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
	cache StateCache
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

func WithStateCache(c StateCache) Option {
	return func(l *Ledger) { l.cache = c }
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
		log:   logger.WithComponent("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// today returns the current calendar day as UTC midnight, the same representation
// used for parsed credit, expiry and invoice dates.
func (l *Ledger) today() time.Time {
	return dateOf(l.now())
}
