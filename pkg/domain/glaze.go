package domain

import "context"

// Next invokes the remaining stages of a glaze chain, ultimately the node's
// compute function.
type Next func(ctx context.Context) (any, error)

// Glaze is an interceptor wrapping a derived node's computation.
// A glaze must either invoke next exactly once (possibly inspecting or
// transforming the result) or deliberately short-circuit by returning its
// own value or an error without calling it.
//
// Glazes are visible at the node's definition site: the applicable set is
// exactly the declared list, there is no global weaving registry.
type Glaze func(ctx context.Context, node Info, next Next) (any, error)

// ChainGlazes composes the glazes around base in declaration order:
// the first glaze observes the call first and the result last.
func ChainGlazes(glazes []Glaze, node Info, base Next) Next {
	next := base
	for i := len(glazes) - 1; i >= 0; i-- {
		g := glazes[i]
		inner := next
		next = func(ctx context.Context) (any, error) {
			return g(ctx, node, inner)
		}
	}
	return next
}
