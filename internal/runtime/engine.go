package runtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/registry"
	"github.com/aretw0/kiln/pkg/transaction"
)

// Engine is the core resolution runtime. It holds the immutable collaborators
// shared by every kiln: the node registry, lifecycle hooks, the logger and
// the transaction probe. All per-invocation state lives in the Kiln.
type Engine struct {
	registry *registry.Registry
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	probe    ports.TransactionProbe
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTransactionProbe sets the predicate consulted by the transaction guard.
func WithTransactionProbe(probe ports.TransactionProbe) EngineOption {
	return func(e *Engine) {
		e.probe = probe
	}
}

// NewEngine creates a new engine over the given registry.
func NewEngine(reg *registry.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		logger:   logging.NewNop(),
		probe:    transaction.ContextProbe{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine resolves against.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// NewKiln creates a fresh per-invocation kiln.
func (e *Engine) NewKiln() *Kiln {
	return &Kiln{
		engine:  e,
		raw:     make(map[string]any),
		entries: make(map[string]*entry),
	}
}

// Fire resolves the named node in the kiln. It is the sanctioned entry point
// for driving one invocation's computation; internal dependency lookups use
// the same mechanism, reached transitively through each compute's Resolver.
func (e *Engine) Fire(ctx context.Context, k *Kiln, node string) (any, error) {
	return k.resolve(ctx, node, nil)
}

// Run drives one complete firing sequence: it creates a kiln, supplies the
// raw inputs, fires the nodes in order and finalizes with Success when every
// firing completed, Failure otherwise. Finalize runs in both cases, making
// Run equivalent to a guaranteed-execution block around the fire sequence.
//
// It returns the values of the fired nodes keyed by name. Firing and cleanup
// errors are joined; the cleanup aggregate never masks the firing error.
func (e *Engine) Run(ctx context.Context, inputs map[string]any, nodes ...string) (map[string]any, error) {
	k := e.NewKiln()
	results := make(map[string]any, len(nodes))

	var fireErr error
	for name, value := range inputs {
		if err := k.Supply(name, value); err != nil {
			fireErr = err
			break
		}
	}
	if fireErr == nil {
		for _, node := range nodes {
			value, err := e.Fire(ctx, k, node)
			if err != nil {
				fireErr = err
				break
			}
			results[node] = value
		}
	}

	outcome := domain.OutcomeSuccess
	if fireErr != nil {
		outcome = domain.OutcomeFailure
	}
	finErr := k.Finalize(ctx, outcome)

	return results, errors.Join(fireErr, finErr)
}
