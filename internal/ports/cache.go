package ports

import (
	"context"
	"time"
)

// Cache is a small key-value capability for usecase bookkeeping.
// Values are advisory; usecases must work when it is nil or failing.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
