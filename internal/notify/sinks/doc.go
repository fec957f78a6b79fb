// Package sinks implements concrete notification consumers: structured logs,
// Prometheus counters, a Pub/Sub fan-out and an in-memory feed for the API.
// Each sink satisfies notify.Sink and tolerates repeated Consume/Close calls.
package sinks
