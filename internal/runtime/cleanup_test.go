package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/kiln/internal/runtime"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/registry"
)

// journal records cleanup invocations in order, safely across goroutines.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) cleanup(entry string) domain.CleanupFunc {
	return func(ctx context.Context, value any) error {
		j.add(entry)
		return nil
	}
}

func TestKiln_CleanupOutcomeSelection(t *testing.T) {
	log := &journal{}

	reg := registry.New()
	reg.DefineDerived("db", nil,
		func(ctx context.Context, r domain.Resolver) (any, error) {
			return "conn", nil
		},
		registry.WithCleanupSuccess(log.cleanup("commit")),
		registry.WithCleanupFailure(log.cleanup("rollback")),
	)
	reg.DefineDerived("action", []string{"db"}, func(ctx context.Context, r domain.Resolver) (any, error) {
		if _, err := r.Resolve(ctx, "db"); err != nil {
			return nil, err
		}
		return "written", nil
	})

	engine := runtime.NewEngine(reg)
	ctx := context.Background()

	t.Run("success commits", func(t *testing.T) {
		k := engine.NewKiln()
		_, err := engine.Fire(ctx, k, "action")
		require.NoError(t, err)
		require.NoError(t, k.Finalize(ctx, domain.OutcomeSuccess))
		assert.Equal(t, []string{"commit"}, log.list())
	})

	log.entries = nil

	t.Run("failure rolls back", func(t *testing.T) {
		k := engine.NewKiln()
		_, err := engine.Fire(ctx, k, "action")
		require.NoError(t, err)
		require.NoError(t, k.Finalize(ctx, domain.OutcomeFailure))
		assert.Equal(t, []string{"rollback"}, log.list())
	})
}

func TestKiln_UnconditionalCleanupPrecedence(t *testing.T) {
	log := &journal{}

	reg := registry.New()
	reg.DefineDerived("res", nil,
		func(ctx context.Context, r domain.Resolver) (any, error) {
			return "held", nil
		},
		registry.WithCleanup(log.cleanup("always")),
		registry.WithCleanupSuccess(log.cleanup("commit")),
		registry.WithCleanupFailure(log.cleanup("rollback")),
	)

	engine := runtime.NewEngine(reg)
	ctx := context.Background()

	for _, outcome := range []domain.Outcome{domain.OutcomeSuccess, domain.OutcomeFailure} {
		log.entries = nil
		k := engine.NewKiln()
		_, err := engine.Fire(ctx, k, "res")
		require.NoError(t, err)
		require.NoError(t, k.Finalize(ctx, outcome))
		assert.Equal(t, []string{"always"}, log.list(), "outcome %s", outcome)
	}
}

func TestKiln_CleanupReverseOrder(t *testing.T) {
	log := &journal{}

	// c depends on b depends on a. Completion order is a, b, c, so cleanup
	// must run c, b, a.
	reg := registry.New()
	reg.DefineDerived("a", nil,
		func(ctx context.Context, r domain.Resolver) (any, error) { return "a", nil },
		registry.WithCleanup(log.cleanup("a")),
	)
	reg.DefineDerived("b", []string{"a"},
		func(ctx context.Context, r domain.Resolver) (any, error) {
			if _, err := r.Resolve(ctx, "a"); err != nil {
				return nil, err
			}
			return "b", nil
		},
		registry.WithCleanup(log.cleanup("b")),
	)
	reg.DefineDerived("c", []string{"b"},
		func(ctx context.Context, r domain.Resolver) (any, error) {
			if _, err := r.Resolve(ctx, "b"); err != nil {
				return nil, err
			}
			return "c", nil
		},
		registry.WithCleanup(log.cleanup("c")),
	)

	engine := runtime.NewEngine(reg)
	ctx := context.Background()
	k := engine.NewKiln()
	_, err := engine.Fire(ctx, k, "c")
	require.NoError(t, err)
	require.NoError(t, k.Finalize(ctx, domain.OutcomeSuccess))

	assert.Equal(t, []string{"c", "b", "a"}, log.list())
}

func TestKiln_CleanupReceivesValue(t *testing.T) {
	var got any

	reg := registry.New()
	reg.DefineDerived("res", nil,
		func(ctx context.Context, r domain.Resolver) (any, error) {
			return 42, nil
		},
		registry.WithCleanup(func(ctx context.Context, value any) error {
			got = value
			return nil
		}),
	)

	engine := runtime.NewEngine(reg)
	ctx := context.Background()
	k := engine.NewKiln()
	_, err := engine.Fire(ctx, k, "res")
	require.NoError(t, err)
	require.NoError(t, k.Finalize(ctx, domain.OutcomeSuccess))
	assert.Equal(t, 42, got)
}

func TestKiln_DynamicCleanups(t *testing.T) {
	log := &journal{}

	reg := registry.New()
	reg.DefineDerived("res", nil, func(ctx context.Context, r domain.Resolver) (any, error) {
		r.OnSuccess(log.cleanup("on-success"))
		r.OnFailure(log.cleanup("on-failure"))
		r.OnCleanup(log.cleanup("always"))
		return "ok", nil
	})

	engine := runtime.NewEngine(reg)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		log.entries = nil
		k := engine.NewKiln()
		_, err := engine.Fire(ctx, k, "res")
		require.NoError(t, err)
		require.NoError(t, k.Finalize(ctx, domain.OutcomeSuccess))
		assert.Equal(t, []string{"always", "on-success"}, log.list())
	})

	t.Run("failure", func(t *testing.T) {
		log.entries = nil
		k := engine.NewKiln()
		_, err := engine.Fire(ctx, k, "res")
		require.NoError(t, err)
		require.NoError(t, k.Finalize(ctx, domain.OutcomeFailure))
		assert.Equal(t, []string{"always", "on-failure"}, log.list())
	})
}

func TestKiln_FailedComputeRegistersNoCleanup(t *testing.T) {
	log := &journal{}

	reg := registry.New()
	reg.DefineDerived("res", nil,
		func(ctx context.Context, r domain.Resolver) (any, error) {
			r.OnCleanup(log.cleanup("dynamic"))
			return nil, fmt.Errorf("compute died")
		},
		registry.WithCleanup(log.cleanup("static")),
	)

	engine := runtime.NewEngine(reg)
	ctx := context.Background()
	k := engine.NewKiln()
	_, err := engine.Fire(ctx, k, "res")
	require.Error(t, err)
	require.NoError(t, k.Finalize(ctx, domain.OutcomeFailure))

	assert.Empty(t, log.list(), "cleanups of a failed node must not run")
}

func TestKiln_CleanupFailuresAggregated(t *testing.T) {
	log := &journal{}
	badA := errors.New("release a failed")
	badC := errors.New("release c failed")

	reg := registry.New()
	reg.DefineDerived("a", nil,
		func(ctx context.Context, r domain.Resolver) (any, error) { return "a", nil },
		registry.WithCleanup(func(ctx context.Context, value any) error { return badA }),
	)
	reg.DefineDerived("b", []string{"a"},
		func(ctx context.Context, r domain.Resolver) (any, error) {
			if _, err := r.Resolve(ctx, "a"); err != nil {
				return nil, err
			}
			return "b", nil
		},
		registry.WithCleanup(log.cleanup("b")),
	)
	reg.DefineDerived("c", []string{"b"},
		func(ctx context.Context, r domain.Resolver) (any, error) {
			if _, err := r.Resolve(ctx, "b"); err != nil {
				return nil, err
			}
			return "c", nil
		},
		registry.WithCleanup(func(ctx context.Context, value any) error { return badC }),
	)

	engine := runtime.NewEngine(reg)
	ctx := context.Background()
	k := engine.NewKiln()
	_, err := engine.Fire(ctx, k, "c")
	require.NoError(t, err)

	finErr := k.Finalize(ctx, domain.OutcomeSuccess)
	require.Error(t, finErr)

	var cleanupErr *domain.CleanupError
	require.ErrorAs(t, finErr, &cleanupErr)
	assert.Equal(t, domain.OutcomeSuccess, cleanupErr.Outcome)
	assert.Len(t, cleanupErr.Failures, 2)
	assert.ErrorIs(t, finErr, badA)
	assert.ErrorIs(t, finErr, badC)

	// The middle cleanup still ran despite failures around it.
	assert.Equal(t, []string{"b"}, log.list())
}

func TestKiln_CleanupPanicRecovered(t *testing.T) {
	log := &journal{}

	reg := registry.New()
	reg.DefineDerived("a", nil,
		func(ctx context.Context, r domain.Resolver) (any, error) { return "a", nil },
		registry.WithCleanup(log.cleanup("a")),
	)
	reg.DefineDerived("b", []string{"a"},
		func(ctx context.Context, r domain.Resolver) (any, error) {
			if _, err := r.Resolve(ctx, "a"); err != nil {
				return nil, err
			}
			return "b", nil
		},
		registry.WithCleanup(func(ctx context.Context, value any) error {
			panic("cleanup went sideways")
		}),
	)

	engine := runtime.NewEngine(reg)
	ctx := context.Background()
	k := engine.NewKiln()
	_, err := engine.Fire(ctx, k, "b")
	require.NoError(t, err)

	finErr := k.Finalize(ctx, domain.OutcomeSuccess)
	var cleanupErr *domain.CleanupError
	require.ErrorAs(t, finErr, &cleanupErr)
	require.Len(t, cleanupErr.Failures, 1)
	assert.Contains(t, cleanupErr.Failures[0].Err.Error(), "cleanup went sideways")

	// Draining continued past the panic.
	assert.Equal(t, []string{"a"}, log.list())
}

func TestKiln_ClosedAfterFinalize(t *testing.T) {
	reg, _ := greetingRegistry(t)
	engine := runtime.NewEngine(reg)
	ctx := context.Background()

	k := engine.NewKiln()
	require.NoError(t, k.Supply("user-id", "alice"))
	_, err := engine.Fire(ctx, k, "greeting")
	require.NoError(t, err)
	require.NoError(t, k.Finalize(ctx, domain.OutcomeSuccess))

	_, err = engine.Fire(ctx, k, "greeting")
	assert.ErrorIs(t, err, domain.ErrKilnClosed)

	assert.ErrorIs(t, k.Supply("user-id", "bob"), domain.ErrKilnClosed)
	assert.ErrorIs(t, k.Finalize(ctx, domain.OutcomeSuccess), domain.ErrKilnClosed)
}

func TestKiln_FinalizeEmptyKiln(t *testing.T) {
	reg, _ := greetingRegistry(t)
	engine := runtime.NewEngine(reg)

	k := engine.NewKiln()
	assert.NoError(t, k.Finalize(context.Background(), domain.OutcomeFailure))
}
