// Package glaze provides stock interceptors for derived nodes.
//
// A glaze wraps one node's computation via continuation passing: it may call
// through, short-circuit with its own value, or fail. Chains are declared per
// node and composed in declaration order (first declared outermost); there is
// no global interceptor registry.
package glaze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
)

// ErrDenied is returned (wrapped) by Authorize when the check refuses the call.
var ErrDenied = errors.New("access denied")

// Logging logs entry and exit of the glazed node at debug level, with the
// chain position it observes (anything declared after it, plus the compute).
func Logging(logger *slog.Logger) domain.Glaze {
	return func(ctx context.Context, node domain.Info, next domain.Next) (any, error) {
		start := time.Now()
		logger.DebugContext(ctx, "glaze enter", "node", node.Name)

		value, err := next(ctx)

		if err != nil {
			logger.DebugContext(ctx, "glaze exit", "node", node.Name, "err", err, "duration", time.Since(start))
			return nil, err
		}
		logger.DebugContext(ctx, "glaze exit", "node", node.Name, "duration", time.Since(start))
		return value, nil
	}
}

// Authorize calls through only when check approves the node for this
// invocation; otherwise it short-circuits without invoking the continuation.
// The check typically inspects caller identity carried on the context.
func Authorize(check func(ctx context.Context, node domain.Info) error) domain.Glaze {
	return func(ctx context.Context, node domain.Info, next domain.Next) (any, error) {
		if err := check(ctx, node); err != nil {
			return nil, fmt.Errorf("node '%s': %w: %w", node.Name, ErrDenied, err)
		}
		return next(ctx)
	}
}

// PostProcess transforms the successful result of the remaining chain.
// Failures pass through untouched.
func PostProcess(fn func(ctx context.Context, value any) (any, error)) domain.Glaze {
	return func(ctx context.Context, node domain.Info, next domain.Next) (any, error) {
		value, err := next(ctx)
		if err != nil {
			return nil, err
		}
		return fn(ctx, value)
	}
}

// Recover converts a panic anywhere in the remaining chain into an error,
// so one misbehaving compute aborts its firing instead of the process.
func Recover() domain.Glaze {
	return func(ctx context.Context, node domain.Info, next domain.Next) (value any, err error) {
		defer func() {
			if r := recover(); r != nil {
				value = nil
				err = fmt.Errorf("node '%s' panicked: %v", node.Name, r)
			}
		}()
		return next(ctx)
	}
}
