package runtime

import (
	"context"
	"sync"

	"github.com/aretw0/kiln/pkg/domain"
)

// resolveContext is the Resolver handed to one compute function. It carries
// the resolution path so recursive lookups extend the cycle check, and it
// collects dynamically registered cleanup actions, which the kiln retains
// only if the compute succeeds.
type resolveContext struct {
	kiln *Kiln
	node string
	path []string

	mu      sync.Mutex
	dynamic []cleanupRecord
}

var _ domain.Resolver = (*resolveContext)(nil)

func (rc *resolveContext) Resolve(ctx context.Context, name string) (any, error) {
	return rc.kiln.resolve(ctx, name, rc.path)
}

func (rc *resolveContext) Node() string {
	return rc.node
}

func (rc *resolveContext) OnCleanup(fn domain.CleanupFunc) {
	rc.add(cleanupRecord{node: rc.node, unconditional: fn})
}

func (rc *resolveContext) OnSuccess(fn domain.CleanupFunc) {
	rc.add(cleanupRecord{node: rc.node, onSuccess: fn})
}

func (rc *resolveContext) OnFailure(fn domain.CleanupFunc) {
	rc.add(cleanupRecord{node: rc.node, onFailure: fn})
}

func (rc *resolveContext) add(rec cleanupRecord) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.dynamic = append(rc.dynamic, rec)
}
