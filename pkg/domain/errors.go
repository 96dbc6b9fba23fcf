package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNodeNotFound is returned when a node name is not present in the registry.
var ErrNodeNotFound = errors.New("node not defined")

// ErrUnsuppliedInput is returned when a raw node is resolved before being
// supplied. The failure is not memoized: supplying the value and resolving
// again succeeds.
var ErrUnsuppliedInput = errors.New("raw node not supplied")

// ErrKilnClosed is returned when any operation is attempted on a finalized kiln.
var ErrKilnClosed = errors.New("kiln is closed")

// ErrNotRaw is returned when Supply targets a derived node.
var ErrNotRaw = errors.New("supply target is not a raw node")

// ErrTransactionNotAllowed is returned when a node is fired inside a retrying
// atomic block without the node (and its transitive dependencies) being
// marked transaction-allowed.
var ErrTransactionNotAllowed = errors.New("resolution not allowed inside transaction")

// CycleError reports a node observed again during its own resolution.
type CycleError struct {
	Node string
	// Path is the resolution path that closed the cycle, ending at Node.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency on node '%s' (path: %s)", e.Node, strings.Join(e.Path, " -> "))
}

// ComputeError reports a failure raised by a node's compute function or one
// of its glazes. It carries the node identity so the driver can decide how
// to present the failure.
type ComputeError struct {
	Node string
	Err  error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("node '%s' failed: %v", e.Node, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

// TypeError reports a resolved value that does not match the requested type.
type TypeError struct {
	Node string
	Want any
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("node '%s' resolved to %T, want %T", e.Node, e.Got, e.Want)
}

// CleanupFailure records one failing cleanup action during finalize.
type CleanupFailure struct {
	Node string
	Err  error
}

// CleanupError aggregates cleanup failures raised during finalize.
// All cleanups still run (best-effort draining); the aggregate is surfaced
// after the drain completes and never masks the outcome that selected which
// cleanup variants ran.
type CleanupError struct {
	Outcome  Outcome
	Failures []CleanupFailure
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("finalize(%s): %d cleanup action(s) failed: %v", e.Outcome, len(e.Failures), errors.Join(e.causes()...))
}

func (e *CleanupError) Unwrap() error {
	return errors.Join(e.causes()...)
}

func (e *CleanupError) causes() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, fmt.Errorf("node '%s': %w", f.Node, f.Err))
	}
	return errs
}
