package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
)

// Kiln is one invocation's working memory: the memoized node values and the
// cleanup actions acquired while resolving them. It is created fresh per
// request or operation and discarded after Finalize.
type Kiln struct {
	engine *Engine

	mu       sync.Mutex
	raw      map[string]any
	entries  map[string]*entry
	cleanups []cleanupRecord
	closed   bool
}

// entry is the memoized outcome of resolving one derived node. The once
// guarantees the compute function runs at most once per kiln even when
// multiple call paths resolve the node concurrently: later callers block in
// Do until the first resolution completes, then observe the stored result.
type entry struct {
	once  sync.Once
	value any
	err   error
}

// cleanupRecord is one registered cleanup action. At finalize, the
// unconditional action is selected if present, else the variant matching
// the outcome.
type cleanupRecord struct {
	node          string
	value         any
	unconditional domain.CleanupFunc
	onSuccess     domain.CleanupFunc
	onFailure     domain.CleanupFunc
}

func (r cleanupRecord) select_(outcome domain.Outcome) domain.CleanupFunc {
	if r.unconditional != nil {
		return r.unconditional
	}
	if outcome == domain.OutcomeSuccess {
		return r.onSuccess
	}
	return r.onFailure
}

// Supply sets the memoized value for a raw node. It fails on derived nodes
// and on closed kilns. Values are read at resolution time, so a raw may be
// re-supplied while still unconsumed.
func (k *Kiln) Supply(name string, value any) error {
	def, err := k.engine.registry.Lookup(name)
	if err != nil {
		return err
	}
	if def.Kind != domain.KindRaw {
		return fmt.Errorf("supply '%s': %w", name, domain.ErrNotRaw)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("supply '%s': %w", name, domain.ErrKilnClosed)
	}
	k.raw[name] = value
	return nil
}

// resolve implements "resolve node name in this kiln". path is the chain of
// derived nodes currently being computed on this logical call stack; a name
// already on it is a cycle, never a silent re-entry.
func (k *Kiln) resolve(ctx context.Context, name string, path []string) (any, error) {
	if k.isClosed() {
		return nil, fmt.Errorf("resolve '%s': %w", name, domain.ErrKilnClosed)
	}

	def, err := k.engine.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	if k.engine.probe != nil && k.engine.probe.InTransaction(ctx) {
		if !k.engine.registry.TransactionAllowed(name) {
			return nil, fmt.Errorf("resolve '%s': %w", name, domain.ErrTransactionNotAllowed)
		}
	}

	for _, p := range path {
		if p == name {
			return nil, &domain.CycleError{Node: name, Path: append(append([]string{}, path...), name)}
		}
	}

	// Raw values are looked up, never computed. An unsupplied raw is an
	// error but is not memoized as Failed: supplying it later must succeed.
	if def.Kind == domain.KindRaw {
		k.mu.Lock()
		value, ok := k.raw[name]
		k.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("resolve '%s': %w", name, domain.ErrUnsuppliedInput)
		}
		return value, nil
	}

	e := k.entry(name)
	e.once.Do(func() {
		e.value, e.err = k.compute(ctx, def, append(path, name))
	})
	return e.value, e.err
}

func (k *Kiln) entry(name string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[name]
	if !ok {
		e = &entry{}
		k.entries[name] = e
	}
	return e
}

// compute runs a derived node's glaze chain around its compute function and
// registers the declared cleanup actions on success.
func (k *Kiln) compute(ctx context.Context, def *domain.Definition, path []string) (any, error) {
	info := def.Info()
	start := time.Now()

	k.emitFiring(ctx, &domain.FiringEvent{
		Timestamp: start,
		Type:      domain.EventNodeResolve,
		Node:      def.Name,
		Kind:      def.Kind,
	})

	rc := &resolveContext{kiln: k, node: def.Name, path: path}
	base := func(ctx context.Context) (any, error) {
		return def.Compute(ctx, rc)
	}

	value, err := domain.ChainGlazes(def.Glazes, info, base)(ctx)
	elapsed := time.Since(start)

	if err != nil {
		wrapped := &domain.ComputeError{Node: def.Name, Err: err}
		k.engine.logger.Debug("node failed", "node", def.Name, "err", err, "duration", elapsed)
		k.emitFiring(ctx, &domain.FiringEvent{
			Timestamp: time.Now(),
			Type:      domain.EventNodeFailed,
			Node:      def.Name,
			Kind:      def.Kind,
			Duration:  elapsed,
			Err:       wrapped,
		})
		return nil, wrapped
	}

	k.registerCleanups(def, rc, value)
	k.engine.logger.Debug("node resolved", "node", def.Name, "duration", elapsed)
	k.emitFiring(ctx, &domain.FiringEvent{
		Timestamp: time.Now(),
		Type:      domain.EventNodeResolved,
		Node:      def.Name,
		Kind:      def.Kind,
		Duration:  elapsed,
	})
	return value, nil
}

// registerCleanups appends the node's cleanup actions in acquisition order:
// the definition-level actions first, then any registered dynamically during
// the compute. Actions of a failing compute are never retained; a compute
// that fails must release its own partial acquisitions before returning.
func (k *Kiln) registerCleanups(def *domain.Definition, rc *resolveContext, value any) {
	var records []cleanupRecord
	if def.Cleanup != nil || def.CleanupSuccess != nil || def.CleanupFailure != nil {
		records = append(records, cleanupRecord{
			node:          def.Name,
			value:         value,
			unconditional: def.Cleanup,
			onSuccess:     def.CleanupSuccess,
			onFailure:     def.CleanupFailure,
		})
	}
	for _, dyn := range rc.dynamic {
		dyn.value = value
		records = append(records, dyn)
	}
	if len(records) == 0 {
		return
	}

	k.mu.Lock()
	k.cleanups = append(k.cleanups, records...)
	k.mu.Unlock()
}

// Finalize closes the kiln and runs every registered cleanup action exactly
// once, in reverse order of acquisition, selecting the unconditional action
// if present, else the variant matching the outcome. Draining is best-effort:
// a failing action is recorded and the rest still run; the aggregate (if any)
// is surfaced after all actions were attempted.
func (k *Kiln) Finalize(ctx context.Context, outcome domain.Outcome) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return fmt.Errorf("finalize: %w", domain.ErrKilnClosed)
	}
	k.closed = true
	records := k.cleanups
	k.cleanups = nil
	k.mu.Unlock()

	var failures []domain.CleanupFailure
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		fn := rec.select_(outcome)
		if fn == nil {
			continue
		}
		if err := k.runCleanup(ctx, fn, rec.value); err != nil {
			k.engine.logger.Warn("cleanup action failed", "node", rec.node, "outcome", string(outcome), "err", err)
			failures = append(failures, domain.CleanupFailure{Node: rec.node, Err: err})
		}
	}

	ev := &domain.FinalizeEvent{
		Timestamp: time.Now(),
		Outcome:   outcome,
		Cleanups:  len(records),
	}
	var aggErr error
	if len(failures) > 0 {
		aggErr = &domain.CleanupError{Outcome: outcome, Failures: failures}
		ev.CleanupErr = aggErr
	}
	if h := k.engine.hooks.OnFinalize; h != nil {
		h(ctx, ev)
	}
	return aggErr
}

// runCleanup recovers panics so a misbehaving action cannot abort draining.
func (k *Kiln) runCleanup(ctx context.Context, fn domain.CleanupFunc, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()
	return fn(ctx, value)
}

func (k *Kiln) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

func (k *Kiln) emitFiring(ctx context.Context, ev *domain.FiringEvent) {
	switch ev.Type {
	case domain.EventNodeResolve:
		if h := k.engine.hooks.OnNodeResolve; h != nil {
			h(ctx, ev)
		}
	case domain.EventNodeResolved:
		if h := k.engine.hooks.OnNodeResolved; h != nil {
			h(ctx, ev)
		}
	case domain.EventNodeFailed:
		if h := k.engine.hooks.OnNodeFailed; h != nil {
			h(ctx, ev)
		}
	}
}
