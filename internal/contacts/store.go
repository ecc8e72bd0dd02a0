package contacts

import (
	"context"
	"time"

	"github.com/angelmondragon/contactbook-backend/pkg/logger"
	"github.com/angelmondragon/contactbook-backend/pkg/pagination"
)

// Store owns the persisted contact collection. Every mutation is durable
// before it returns, and a failed mutation leaves the collection unchanged.
// Returned records are copies.
type Store interface {
	Create(ctx context.Context, input NewContact) (*Contact, error)
	Get(ctx context.Context, id int64) (*Contact, error)
	Update(ctx context.Context, id int64, patch Patch) (*Contact, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q Query) (*Page, error)
	// All returns the whole collection ordered by name.
	All(ctx context.Context) ([]Contact, error)
	// Import reconciles candidates against the collection and applies the
	// accepted rows as one batch.
	Import(ctx context.Context, candidates []Candidate, opts ImportOptions) (*ImportResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Clock supplies timestamps.
type Clock func() time.Time

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	clock  Clock
	limits pagination.Limits
	logg   *logger.Logger
}

func defaultStoreOptions() storeOptions {
	return storeOptions{
		clock:  time.Now,
		limits: pagination.DefaultLimits,
		logg:   logger.Nop(),
	}
}

func applyOptions(opts []Option) storeOptions {
	o := defaultStoreOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithClock overrides the timestamp source.
func WithClock(clock Clock) Option {
	return func(o *storeOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLimits sets the page size default and cap used by List.
func WithLimits(limits pagination.Limits) Option {
	return func(o *storeOptions) {
		o.limits = limits
	}
}

// WithLogger attaches a logger to the store.
func WithLogger(logg *logger.Logger) Option {
	return func(o *storeOptions) {
		if logg != nil {
			o.logg = logg
		}
	}
}

// now returns a UTC timestamp at microsecond precision so every backend
// round-trips the same value.
func (o storeOptions) now() time.Time {
	return o.clock().UTC().Truncate(time.Microsecond)
}

// touch stamps updatedAt, never earlier than createdAt.
func touch(c *Contact, now time.Time) {
	if now.Before(c.CreatedAt) {
		now = c.CreatedAt
	}
	c.UpdatedAt = now
}
