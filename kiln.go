package kiln

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/internal/runtime"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// Kiln is the per-invocation memoization and cleanup-tracking store.
// Create one per request with Engine.NewKiln, supply raw inputs, fire nodes,
// then Finalize exactly once.
type Kiln = runtime.Kiln

// Convenience aliases so embedding applications only need this package for
// the common surface. The full types live in pkg/domain.
type (
	Outcome        = domain.Outcome
	Resolver       = domain.Resolver
	Glaze          = domain.Glaze
	Next           = domain.Next
	Info           = domain.Info
	LifecycleHooks = domain.LifecycleHooks
)

const (
	OutcomeSuccess = domain.OutcomeSuccess
	OutcomeFailure = domain.OutcomeFailure
)

// Engine is the high-level entry point for the Kiln library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime  *runtime.Engine
	registry *registry.Registry
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	probe    ports.TransactionProbe
	Name     string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTransactionProbe sets the predicate the transaction guard queries.
// By default the engine uses the context marker from pkg/transaction.
func WithTransactionProbe(probe ports.TransactionProbe) Option {
	return func(e *Engine) {
		e.probe = probe
	}
}

// WithName sets a descriptive label attached to the engine's log records.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New initializes a new Kiln Engine over the given registry.
func New(reg *registry.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}

	eng := &Engine{registry: reg}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which
	// would overwrite its default).
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("graph", eng.Name)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.probe != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithTransactionProbe(eng.probe))
	}

	eng.runtime = runtime.NewEngine(reg, runtimeOpts...)
	return eng, nil
}

// NewKiln creates a fresh kiln for one invocation.
func (e *Engine) NewKiln() *Kiln {
	return e.runtime.NewKiln()
}

// Fire resolves the named node in the kiln, computing only the transitive
// dependency set the node actually looks up, each at most once per kiln.
func (e *Engine) Fire(ctx context.Context, k *Kiln, node string) (any, error) {
	return e.runtime.Fire(ctx, k, node)
}

// Run drives one complete invocation: fresh kiln, supplied inputs, the nodes
// fired in order, and a guaranteed Finalize selected by the firing outcome.
// It returns the fired values keyed by node name.
func (e *Engine) Run(ctx context.Context, inputs map[string]any, nodes ...string) (map[string]any, error) {
	return e.runtime.Run(ctx, inputs, nodes...)
}

// Registry returns the underlying node registry used by the engine.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// FireTyped fires a node and asserts the type of its value.
func FireTyped[T any](ctx context.Context, e *Engine, k *Kiln, node string) (T, error) {
	value, err := e.Fire(ctx, k, node)
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, &domain.TypeError{Node: node, Want: zero, Got: value}
	}
	return typed, nil
}

// SupplyDecoded coerces a loosely-typed payload (e.g. a decoded JSON or YAML
// map) into T before supplying it as a raw value. Decoding honors
// `mapstructure` field tags.
func SupplyDecoded[T any](k *Kiln, name string, payload any) error {
	var value T
	if err := mapstructure.Decode(payload, &value); err != nil {
		return fmt.Errorf("supply '%s': decoding payload: %w", name, err)
	}
	return k.Supply(name, value)
}
