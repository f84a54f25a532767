/*
Package observability provides the Prometheus instrumentation of the watchers.

Collectors:

	observer_callbacks_total{watcher,attr}  callbacks invoked
	observer_deferred_watches_total         watches deferred by the lazy resolver
	observer_hook_bindings                  hook bindings currently held
	observer_watchers{state}                watchers per state (pending, bound)
*/
package observability
