package ports

import "context"

// TransactionProbe reports whether the ambient execution is inside a
// retrying atomic block. Such a block may re-execute its body on conflict,
// so the engine refuses to resolve nodes there unless the whole dependency
// closure is explicitly marked transaction-allowed.
//
// The engine does not require any particular transaction primitive, only
// this predicate and the refusal behavior.
type TransactionProbe interface {
	InTransaction(ctx context.Context) bool
}

// TransactionProbeFunc adapts a function to the TransactionProbe interface.
type TransactionProbeFunc func(ctx context.Context) bool

func (f TransactionProbeFunc) InTransaction(ctx context.Context) bool {
	return f(ctx)
}
