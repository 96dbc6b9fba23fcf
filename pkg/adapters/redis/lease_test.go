package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/kiln"
	kilnredis "github.com/aretw0/kiln/pkg/adapters/redis"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/registry"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// leaseRegistry wires a pipeline lease and a writer node queueing one SET
// on it, mirroring the store-then-commit shape of a transactional handler.
func leaseRegistry(client *backend.Client) *registry.Registry {
	reg := registry.New()
	kilnredis.DefineLease(reg, "redis.pipeline", client)
	reg.DefineDerived("writer", []string{"redis.pipeline"}, func(ctx context.Context, r kiln.Resolver) (any, error) {
		pipe, err := domain.ResolveTyped[backend.Pipeliner](ctx, r, "redis.pipeline")
		if err != nil {
			return nil, err
		}
		pipe.Set(ctx, "written", "yes", 0)
		return "queued", nil
	})
	return reg
}

func TestLease_CommitsOnSuccess(t *testing.T) {
	mr, client := setup(t)
	engine, err := kiln.New(leaseRegistry(client))
	require.NoError(t, err)
	ctx := context.Background()

	k := engine.NewKiln()
	_, err = engine.Fire(ctx, k, "writer")
	require.NoError(t, err)

	// Nothing visible until the kiln commits.
	require.False(t, mr.Exists("written"))

	require.NoError(t, k.Finalize(ctx, kiln.OutcomeSuccess))

	got, err := mr.Get("written")
	require.NoError(t, err)
	assert.Equal(t, "yes", got)
}

func TestLease_DiscardsOnFailure(t *testing.T) {
	mr, client := setup(t)
	engine, err := kiln.New(leaseRegistry(client))
	require.NoError(t, err)
	ctx := context.Background()

	k := engine.NewKiln()
	_, err = engine.Fire(ctx, k, "writer")
	require.NoError(t, err)

	require.NoError(t, k.Finalize(ctx, kiln.OutcomeFailure))

	assert.False(t, mr.Exists("written"), "discarded pipeline must write nothing")
}

func TestLock_AcquireAndRelease(t *testing.T) {
	mr, client := setup(t)

	reg := registry.New()
	kilnredis.DefineLock(reg, "job.lock", client, "job", time.Minute)
	engine, err := kiln.New(reg)
	require.NoError(t, err)
	ctx := context.Background()

	k := engine.NewKiln()
	value, err := engine.Fire(ctx, k, "job.lock")
	require.NoError(t, err)

	lock, ok := value.(kilnredis.Lock)
	require.True(t, ok)
	assert.Equal(t, "kiln:lock:job", lock.Key)
	assert.True(t, mr.Exists(lock.Key), "lock key must be held while the kiln is open")

	require.NoError(t, k.Finalize(ctx, kiln.OutcomeFailure))
	assert.False(t, mr.Exists(lock.Key), "lock must be released whatever the outcome")
}

func TestLock_AcquireTimesOut(t *testing.T) {
	mr, client := setup(t)
	require.NoError(t, mr.Set("kiln:lock:job", "someone-else"))

	reg := registry.New()
	kilnredis.DefineLock(reg, "job.lock", client, "job", time.Minute)
	engine, err := kiln.New(reg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	k := engine.NewKiln()
	_, err = engine.Fire(ctx, k, "job.lock")
	assert.ErrorIs(t, err, kilnredis.ErrLockAcquire)

	// The foreign holder keeps the lock.
	got, err := mr.Get("kiln:lock:job")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
