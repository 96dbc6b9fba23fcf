package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/domain"
)

// Registry manages the process-wide table of node definitions.
// Registration happens at program initialization; definitions are immutable
// once stored, so resolution requires no per-invocation locking beyond the
// read lock here.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*domain.Definition
	logger *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for registration diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a new empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		defs:   make(map[string]*domain.Definition),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NodeOption configures a node definition at registration time.
type NodeOption func(*domain.Definition)

// WithGlaze appends interceptors to the node's chain. Declaration order is
// composition order: the first declared glaze is outermost.
func WithGlaze(glazes ...domain.Glaze) NodeOption {
	return func(d *domain.Definition) {
		d.Glazes = append(d.Glazes, glazes...)
	}
}

// WithCleanup sets an unconditional cleanup action. It takes precedence over
// the outcome-specific variants at finalize.
func WithCleanup(fn domain.CleanupFunc) NodeOption {
	return func(d *domain.Definition) {
		d.Cleanup = fn
	}
}

// WithCleanupSuccess sets a cleanup action run only on successful finalize.
func WithCleanupSuccess(fn domain.CleanupFunc) NodeOption {
	return func(d *domain.Definition) {
		d.CleanupSuccess = fn
	}
}

// WithCleanupFailure sets a cleanup action run only on failed finalize.
func WithCleanupFailure(fn domain.CleanupFunc) NodeOption {
	return func(d *domain.Definition) {
		d.CleanupFailure = fn
	}
}

// AllowInTransaction marks the node as safe to resolve inside a retrying
// atomic block. The transaction guard also requires the flag on every node
// the marked node transitively depends on.
func AllowInTransaction() NodeOption {
	return func(d *domain.Definition) {
		d.TransactionAllowed = true
	}
}

// DefineRaw registers a raw node. Its value must be supplied into each kiln
// before the node is first resolved.
func (r *Registry) DefineRaw(name string, opts ...NodeOption) {
	def := &domain.Definition{
		Name: name,
		Kind: domain.KindRaw,
	}
	for _, opt := range opts {
		opt(def)
	}
	r.store(def)
}

// DefineDerived registers a derived node computed by fn. The declared deps
// feed static checks; fn still pulls each value through its Resolver, so a
// dependency that is never looked up is never computed.
func (r *Registry) DefineDerived(name string, deps []string, fn domain.ComputeFunc, opts ...NodeOption) {
	def := &domain.Definition{
		Name:    name,
		Kind:    domain.KindDerived,
		Deps:    deps,
		Compute: fn,
	}
	for _, opt := range opts {
		opt(def)
	}
	r.store(def)
}

// store replaces any existing definition under the same name. Redefinition
// supports iterative development (e.g. replacing a dispatch-table node);
// a kind conflict is reported but not fatal.
func (r *Registry) store(def *domain.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.defs[def.Name]; exists {
		if prev.Kind != def.Kind {
			r.logger.Warn("redefining node with conflicting kind",
				"node", def.Name, "was", prev.Kind, "now", def.Kind)
		} else {
			r.logger.Debug("redefining node", "node", def.Name)
		}
	}
	r.defs[def.Name] = def
}

// Lookup retrieves a definition by name.
func (r *Registry) Lookup(name string) (*domain.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("lookup '%s': %w", name, domain.ErrNodeNotFound)
	}
	return def, nil
}

// Names returns all registered node names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TransactionAllowed reports whether name and its whole transitive dependency
// closure are marked transaction-allowed. Unknown dependencies count as not
// allowed: the guard refuses before resolution would fail anyway.
func (r *Registry) TransactionAllowed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := make(map[string]bool)
	var walk func(string) bool
	walk = func(n string) bool {
		if visited[n] {
			return true
		}
		visited[n] = true

		def, ok := r.defs[n]
		if !ok || !def.TransactionAllowed {
			return false
		}
		for _, dep := range def.Deps {
			if !walk(dep) {
				return false
			}
		}
		return true
	}
	return walk(name)
}
