// Package orchestrator coordinates backend detection, selection,
// failover and request execution over the adapter registry.
//
// The conversation loop talks only to this package: it asks for a
// backend (automatically or by name), sends unified chat requests with a
// cancellable context, and decides when to fail over. At most one chat
// request is in flight per process; detection may probe all backends
// concurrently since probes are independent reads.
package orchestrator
