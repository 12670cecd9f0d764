package uow

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"

	"raptorfleet/internal/infrastructure/persistence/sqlite/storeerr"
	"raptorfleet/internal/ports"
)

const DefaultRetryBudget = 2 * time.Second

// UnitOfWork implements ports.UnitOfWork with gorm. Transactions that fail
// with a transient storage error are retried as a whole until the retry
// budget is spent.
type UnitOfWork struct {
	db     *gorm.DB
	budget time.Duration
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

type Option func(*UnitOfWork)

func WithRetryBudget(budget time.Duration) Option {
	return func(u *UnitOfWork) {
		if budget > 0 {
			u.budget = budget
		}
	}
}

func NewUnitOfWork(db *gorm.DB, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{db: db, budget: DefaultRetryBudget}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if fn == nil {
		return errors.New("transaction func is required")
	}

	// Nested calls join the outer transaction; the outer call owns retries.
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	attempt := func() (struct{}, error) {
		err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ports.WithTxContext(ctx, tx))
		})
		if err == nil {
			return struct{}{}, nil
		}

		err = storeerr.Classify(err)
		if storeerr.IsRetryable(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(u.newBackOff()),
		backoff.WithMaxElapsedTime(u.budget),
	)
	return err
}

func (u *UnitOfWork) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	return b
}
