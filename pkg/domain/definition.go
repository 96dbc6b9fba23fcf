package domain

import "context"

// Kind discriminates how a node obtains its value.
type Kind string

const (
	// KindRaw marks a node whose value is supplied externally ("coal").
	// Resolving a raw node that was never supplied is an error, not a default.
	KindRaw Kind = "raw"
	// KindDerived marks a node computed from other nodes ("clay").
	KindDerived Kind = "derived"
)

// Outcome is the result a kiln is finalized with. It selects which
// cleanup variant runs for each node that declared outcome-specific cleanup.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Resolver is the lookup capability handed to a compute function.
// It is bound to the kiln (and the resolution path) of the current firing,
// so dependency lookup is explicit rather than ambient state.
type Resolver interface {
	// Resolve returns the value of another node, computing it on demand.
	// A dependency that is never looked up is never computed.
	Resolve(ctx context.Context, name string) (any, error)

	// Node returns the name of the node currently being computed.
	Node() string

	// OnCleanup registers an action to run at finalize regardless of outcome.
	OnCleanup(fn CleanupFunc)

	// OnSuccess registers an action to run only when the kiln is finalized
	// with OutcomeSuccess.
	OnSuccess(fn CleanupFunc)

	// OnFailure registers an action to run only when the kiln is finalized
	// with OutcomeFailure.
	OnFailure(fn CleanupFunc)
}

// ResolveTyped resolves a dependency and asserts its type.
func ResolveTyped[T any](ctx context.Context, r Resolver, name string) (T, error) {
	val, err := r.Resolve(ctx, name)
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := val.(T)
	if !ok {
		var zero T
		return zero, &ComputeError{Node: r.Node(), Err: &TypeError{Node: name, Want: zero, Got: val}}
	}
	return typed, nil
}

// ComputeFunc produces the value of a derived node. It must be pure given
// the values of its dependencies, aside from deliberate, cleanup-tracked
// side effects. Dependencies are obtained through the Resolver.
type ComputeFunc func(ctx context.Context, r Resolver) (any, error)

// CleanupFunc releases a resource acquired during resolution. It receives
// the resolved value of the node it was declared on; actions registered
// dynamically through the Resolver may ignore it.
type CleanupFunc func(ctx context.Context, value any) error

// Definition is a named, statically declared unit of value.
// Definitions are created at registration time and immutable thereafter.
type Definition struct {
	Name string
	Kind Kind

	// Deps lists the declared dependencies of a derived node. Resolution is
	// demand driven, so this list documents intent and feeds static checks
	// (registry validation, transaction closure); the compute function still
	// pulls each value explicitly through its Resolver.
	Deps []string

	// Compute is set for derived nodes only.
	Compute ComputeFunc

	// Glazes wrap Compute in declaration order: the first glaze is outermost.
	Glazes []Glaze

	// Cleanup runs at finalize regardless of outcome. When set, it takes
	// precedence over the outcome-specific variants.
	Cleanup CleanupFunc
	// CleanupSuccess runs at finalize only for OutcomeSuccess.
	CleanupSuccess CleanupFunc
	// CleanupFailure runs at finalize only for OutcomeFailure.
	CleanupFailure CleanupFunc

	// TransactionAllowed permits resolution inside a retrying atomic block.
	// A node may only be fired inside such a block when itself and its whole
	// transitive dependency closure carry this flag.
	TransactionAllowed bool
}

// Info is the node identity visible to glazes and hooks.
type Info struct {
	Name string
	Kind Kind
	Deps []string
}

// Info returns the identity view of the definition.
func (d *Definition) Info() Info {
	return Info{Name: d.Name, Kind: d.Kind, Deps: d.Deps}
}
