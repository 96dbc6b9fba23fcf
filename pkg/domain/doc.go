/*
Package domain contains the core domain models for the Kiln engine.

It defines the fundamental entities of the computation graph: node
Definitions (raw inputs and derived computations), the Glaze interceptor
chain, cleanup actions, lifecycle events and the engine's error taxonomy.
This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Definition: A named node of the graph, either raw (supplied) or derived (computed).
  - Resolver: The lookup capability handed to compute functions, bound to one kiln.
  - Glaze: An interceptor wrapping a derived node's computation.
  - LifecycleHooks: Observability callbacks for resolutions and finalization.
*/
package domain
