/*
Package observability exposes the engine's lifecycle as Prometheus metrics.

The Metrics collector plugs into the engine as LifecycleHooks; combine it
with application hooks via domain.ComposeHooks. The CLI server mounts the
standard promhttp handler next to the board demo.
*/
package observability
