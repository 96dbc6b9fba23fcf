package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeResolve  EventType = "node_resolve"
	EventNodeResolved EventType = "node_resolved"
	EventNodeFailed   EventType = "node_failed"
	EventFinalize     EventType = "finalize"
)

// FiringEvent describes one resolution of a node within a kiln.
// Resolve events fire only on cache misses: memoized lookups are silent.
type FiringEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Node      string    `json:"node"`
	Kind      Kind      `json:"kind"`
	Duration  time.Duration
	Err       error `json:"-"`
}

// FinalizeEvent describes the closing of a kiln.
type FinalizeEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Outcome    Outcome   `json:"outcome"`
	Cleanups   int       `json:"cleanups"`
	CleanupErr error     `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnNodeResolve  func(context.Context, *FiringEvent)
	OnNodeResolved func(context.Context, *FiringEvent)
	OnNodeFailed   func(context.Context, *FiringEvent)
	OnFinalize     func(context.Context, *FinalizeEvent)
}

// ComposeHooks fans events out to every hook set in order.
func ComposeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeResolve: func(ctx context.Context, e *FiringEvent) {
			for _, h := range hooks {
				if h.OnNodeResolve != nil {
					h.OnNodeResolve(ctx, e)
				}
			}
		},
		OnNodeResolved: func(ctx context.Context, e *FiringEvent) {
			for _, h := range hooks {
				if h.OnNodeResolved != nil {
					h.OnNodeResolved(ctx, e)
				}
			}
		},
		OnNodeFailed: func(ctx context.Context, e *FiringEvent) {
			for _, h := range hooks {
				if h.OnNodeFailed != nil {
					h.OnNodeFailed(ctx, e)
				}
			}
		},
		OnFinalize: func(ctx context.Context, e *FinalizeEvent) {
			for _, h := range hooks {
				if h.OnFinalize != nil {
					h.OnFinalize(ctx, e)
				}
			}
		},
	}
}
