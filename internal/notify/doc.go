// Package notify provides the notification primitives, non-blocking hub and
// emitter interface the controller uses to report outcomes. The hub batches
// notifications on a background goroutine and fans them out to pluggable sinks
// such as structured logs, Prometheus counters, Pub/Sub or an in-memory feed
// served by the API.
package notify
