// Package lock provides per-key mutual exclusion.
//
// A Locker grants at most one Lease per key at a time. Acquire blocks until the
// key is free or ctx is done; a context ending while waiting is reported as
// sentinel.ErrLockTimeout. A backend that cannot be reached is reported as
// sentinel.ErrUnavailable. Releasing a lease more than once is a no-op.
package lock

import (
	"context"
	"errors"
	"fmt"

	"stash/pkg/platform/sentinel"
)

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases keyed by an opaque string.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

func timeoutError(key string, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		return fmt.Errorf("lock %s: %w", key, errors.Join(sentinel.ErrLockTimeout, cause))
	}
	return fmt.Errorf("lock %s: %w", key, cause)
}

func unavailableError(key, step string, cause error) error {
	return fmt.Errorf("lock %s: %s: %w", key, step, errors.Join(sentinel.ErrUnavailable, cause))
}
