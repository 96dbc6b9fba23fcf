// Package redis defines kiln nodes over Redis resources.
//
// The definitions here are the canonical examples of outcome-differentiated
// cleanup: a transaction pipeline leased by a node is committed when the kiln
// finalizes with Success and discarded on Failure, and a distributed lock is
// released unconditionally.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/registry"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// DefineLease registers a derived node producing a Redis MULTI/EXEC pipeline
// scoped to one firing. Commands queued on it by dependent nodes are executed
// atomically when the kiln finalizes with Success and discarded on Failure.
func DefineLease(reg *registry.Registry, name string, client *backend.Client) {
	reg.DefineDerived(name, nil,
		func(ctx context.Context, r domain.Resolver) (any, error) {
			return client.TxPipeline(), nil
		},
		registry.WithCleanupSuccess(func(ctx context.Context, value any) error {
			pipe := value.(backend.Pipeliner)
			if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
				return fmt.Errorf("committing pipeline '%s': %w", name, err)
			}
			return nil
		}),
		registry.WithCleanupFailure(func(ctx context.Context, value any) error {
			value.(backend.Pipeliner).Discard()
			return nil
		}),
	)
}

// Lock is the value resolved by a lock node: the key held for this firing.
type Lock struct {
	Key string
}

// DefineLock registers a derived node that acquires a distributed lock for
// the duration of one firing, using Redis SET NX PX. The lock is released by
// an unconditional cleanup at finalize, whichever the outcome.
func DefineLock(reg *registry.Registry, name string, client *backend.Client, key string, ttl time.Duration) {
	lockKey := "kiln:lock:" + key
	// Value is a nonce so release only deletes a lock this firing still holds.
	reg.DefineDerived(name, nil,
		func(ctx context.Context, r domain.Resolver) (any, error) {
			nonce := fmt.Sprintf("%d", time.Now().UnixNano())

			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()

			for {
				success, err := client.SetNX(ctx, lockKey, nonce, ttl).Result()
				if err != nil {
					return nil, fmt.Errorf("redis error acquiring lock: %w", err)
				}
				if success {
					r.OnCleanup(func(ctx context.Context, _ any) error {
						script := `
							if redis.call("get", KEYS[1]) == ARGV[1] then
								return redis.call("del", KEYS[1])
							else
								return 0
							end
						`
						return client.Eval(ctx, script, []string{lockKey}, nonce).Err()
					})
					return Lock{Key: lockKey}, nil
				}

				select {
				case <-ctx.Done():
					return nil, fmt.Errorf("%w: %w", ErrLockAcquire, ctx.Err())
				case <-ticker.C:
					// Retry...
				}
			}
		},
	)
}
