/*
Package kiln is a per-invocation dependency-resolution and lifecycle engine.

It models one request's computation as a graph of named nodes: raw nodes
("coal") are supplied externally, derived nodes ("clay") are computed by pure
functions of other nodes. A Kiln is the per-invocation store that resolves
nodes lazily, memoizes each at most once, and tracks the resources they
acquire. Cross-cutting behavior (logging, authorization, post-processing)
wraps individual nodes through ordered interceptor chains ("glazes") declared
at the definition site. Finalizing the kiln runs every registered cleanup
action exactly once, in reverse acquisition order, selecting the success- or
failure-specific action by outcome.

# Concept

The engine separates the static graph (the Registry, built once at startup)
from the per-invocation state (the Kiln, created and discarded per request).
Resolution is demand driven: a compute function pulls each dependency through
an explicit Resolver bound to its kiln, so a dependency that is never looked
up is never computed. This Hexagonal Architecture keeps the core free of I/O;
HTTP drivers, Redis resources and metrics live in adapters.

# Key Features

  - Lazy, memoized resolution: each node computes at most once per kiln.
  - Definition-site interceptors: the applicable glazes are exactly the declared list.
  - Deterministic release: cleanups run exactly once, differentiated by outcome.
  - Transaction guard: firing inside a retrying atomic block is refused unless
    the whole dependency closure is marked transaction-allowed.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/kiln"
		"github.com/aretw0/kiln/pkg/registry"
	)

	func main() {
		reg := registry.New()
		reg.DefineRaw("user-id")
		reg.DefineDerived("greeting", []string{"user-id"}, func(ctx context.Context, r kiln.Resolver) (any, error) {
			id, err := r.Resolve(ctx, "user-id")
			if err != nil {
				return nil, err
			}
			return "hello " + id.(string), nil
		})

		eng, err := kiln.New(reg)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		k := eng.NewKiln()
		if err := k.Supply("user-id", "alice"); err != nil {
			log.Fatal(err)
		}

		greeting, err := eng.Fire(ctx, k, "greeting")
		outcome := kiln.OutcomeSuccess
		if err != nil {
			outcome = kiln.OutcomeFailure
		}
		if finErr := k.Finalize(ctx, outcome); finErr != nil {
			log.Printf("cleanup: %v", finErr)
		}
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(greeting) // hello alice
	}
*/
package kiln
