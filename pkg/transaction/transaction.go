// Package transaction provides a context-based implementation of the
// engine's transaction probe. Hosts whose transaction primitive offers its
// own "am I inside a transaction" predicate can implement
// ports.TransactionProbe directly instead.
package transaction

import "context"

type markerKey struct{}

// Enter returns a context flagged as executing inside a retryable atomic
// block. The host's transaction wrapper is expected to call this when it
// begins (or re-executes) a transaction body.
func Enter(ctx context.Context) context.Context {
	return context.WithValue(ctx, markerKey{}, true)
}

// Within reports whether ctx carries the transaction marker.
func Within(ctx context.Context) bool {
	flagged, _ := ctx.Value(markerKey{}).(bool)
	return flagged
}

// ContextProbe implements ports.TransactionProbe over the context marker.
type ContextProbe struct{}

// InTransaction reports whether ctx was flagged via Enter.
func (ContextProbe) InTransaction(ctx context.Context) bool {
	return Within(ctx)
}
